package simconfig

import "fmt"

// ErrInvalidConfiguration reports a spec document that failed structural or
// range validation, naming the offending field path.
type ErrInvalidConfiguration struct {
	FieldPath string
	Reason    string
}

func (e ErrInvalidConfiguration) Error() string {
	return fmt.Sprintf("invalid configuration at %s: %s", e.FieldPath, e.Reason)
}

// ErrInvalidPath reports a spec document path (itself or a `parent`
// reference) outside the configured allow-list.
type ErrInvalidPath struct {
	Path string
}

func (e ErrInvalidPath) Error() string {
	return fmt.Sprintf("path not permitted: %s", e.Path)
}

// ErrFileTooLarge reports a spec document exceeding the configured size cap.
type ErrFileTooLarge struct {
	Path    string
	SizeB   int64
	LimitB  int64
}

func (e ErrFileTooLarge) Error() string {
	return fmt.Sprintf("file %s is %d bytes, exceeds limit of %d bytes", e.Path, e.SizeB, e.LimitB)
}

// ErrCircularInheritance reports a `parent` chain that revisits a document
// already on the current resolution path.
type ErrCircularInheritance struct {
	Path  string
	Chain []string
}

func (e ErrCircularInheritance) Error() string {
	return fmt.Sprintf("circular spec inheritance at %s (chain: %v)", e.Path, e.Chain)
}

// ErrInheritanceTooDeep reports a `parent` chain exceeding MaxInheritDepth.
type ErrInheritanceTooDeep struct {
	Path  string
	Depth int
	Max   int
}

func (e ErrInheritanceTooDeep) Error() string {
	return fmt.Sprintf("spec inheritance chain at %s exceeds max depth %d (reached %d)", e.Path, e.Max, e.Depth)
}
