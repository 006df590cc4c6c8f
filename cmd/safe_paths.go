package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/khanhnv2901/seca-markup/internal/render"
	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	"github.com/khanhnv2901/seca-markup/internal/shared/security"
)

// validateOutputName rejects report names that could leave the output
// directory. Names come from input file names, so separators are refused.
func validateOutputName(name string) error {
	switch name {
	case "":
		return errors.New("report name is required")
	case ".", "..":
		return fmt.Errorf("report name %q is reserved", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("report name %q must not contain path separators", name)
	}
	return nil
}

// reportName derives a report file name from a source name: the base name
// without its extension plus the format's extension.
func reportName(source string, format render.Format) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	switch base {
	case "", ".", "..", string(filepath.Separator), "-":
		base = "stdin"
	}
	return base + format.Extension()
}

// resolveReportPath places name inside dir and refuses anything that
// resolves outside it.
func resolveReportPath(dir, name string) (string, error) {
	if err := validateOutputName(name); err != nil {
		return "", err
	}
	return security.ResolveWithin(dir, name)
}

// ensureOutputDir creates dir when needed and returns it as an absolute path.
func ensureOutputDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return filepath.Abs(dir)
}

// writeReportFile writes data to path, creating the parent directory.
func writeReportFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
