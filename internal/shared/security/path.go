// Package security keeps generated report paths inside their output
// directory.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape indicates the resolved path would leave the base directory.
var ErrPathEscape = errors.New("path escapes base directory")

var errNoBase = errors.New("base directory is required")

// ResolveWithin joins elems under base and returns the absolute result. It
// fails with ErrPathEscape when the result would sit outside base.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errNoBase
	}

	root, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}

	target := filepath.Join(append([]string{root}, elems...)...)
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	return target, nil
}

// within reports whether target is root or lies below it.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
