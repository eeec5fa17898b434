package storage

import "fmt"

// ErrInsufficientQuantity reports that a withdrawal requested more of a
// resource than the ledger currently holds.
type ErrInsufficientQuantity struct {
	ResourceSymbol string
	Requested      float64
	Available      float64
}

func (e *ErrInsufficientQuantity) Error() string {
	return fmt.Sprintf("insufficient %s: need %.3f, have %.3f", e.ResourceSymbol, e.Requested, e.Available)
}

// ErrStorageFull reports that a deposit would exceed the ledger's volume
// or weight capacity.
type ErrStorageFull struct {
	ResourceSymbol string
	Quantity       float64
	Reason         string // "volume" or "weight"
}

func (e *ErrStorageFull) Error() string {
	return fmt.Sprintf("storage full: cannot deposit %.3f %s (%s capacity exceeded)", e.Quantity, e.ResourceSymbol, e.Reason)
}

// ErrUnknownResource reports a ledger operation against a resource symbol
// that was never declared in the resource catalog.
type ErrUnknownResource struct {
	ResourceSymbol string
}

func (e *ErrUnknownResource) Error() string {
	return fmt.Sprintf("unknown resource: %s", e.ResourceSymbol)
}
