package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
)

const (
	appDirName    = "seca-markup"
	dataDirEnvVar = "SECA_MARKUP_DATA_DIR"
)

// getDataDir returns the per-user data directory, following the XDG Base
// Directory layout on Linux/Unix. SECA_MARKUP_DATA_DIR overrides it.
func getDataDir() (string, error) {
	baseDir := os.Getenv(dataDirEnvVar)

	if baseDir == "" {
		switch runtime.GOOS {
		case "windows":
			// %LOCALAPPDATA%\seca-markup
			baseDir = os.Getenv("LOCALAPPDATA")
			if baseDir == "" {
				baseDir = os.Getenv("APPDATA")
			}
			if baseDir == "" {
				return "", fmt.Errorf("could not determine Windows data directory")
			}
			baseDir = filepath.Join(baseDir, appDirName)

		case "darwin":
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("could not determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, "Library", "Application Support", appDirName)

		default:
			// $XDG_DATA_HOME/seca-markup > ~/.local/share/seca-markup
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				baseDir = filepath.Join(xdgDataHome, appDirName)
			} else {
				homeDir, err := os.UserHomeDir()
				if err != nil {
					return "", fmt.Errorf("could not determine home directory: %w", err)
				}
				baseDir = filepath.Join(homeDir, ".local", "share", appDirName)
			}
		}
	}

	if err := os.MkdirAll(baseDir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return baseDir, nil
}

// getResultsDir returns the default directory for reports and history.
func getResultsDir() (string, error) {
	dataDir, err := getDataDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(dataDir, "results")
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	return dir, nil
}
