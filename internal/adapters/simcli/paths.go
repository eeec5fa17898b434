package simcli

import (
	"os"
	"path/filepath"
)

// allowedDirsFor builds the path allow-list of spec.md §4.10: the spec
// document's own directory, the current working directory, and /tmp.
func allowedDirsFor(specPath string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	dirs := []string{cwd, os.TempDir()}
	if specPath != "" {
		dirs = append(dirs, filepath.Dir(specPath))
	}
	return dirs, nil
}
