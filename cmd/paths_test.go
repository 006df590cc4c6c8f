package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGetDataDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv(dataDirEnvVar, dir)

	got, err := getDataDir()
	if err != nil {
		t.Fatalf("getDataDir() failed: %v", err)
	}
	if got != dir {
		t.Fatalf("expected %s, got %s", dir, got)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("data directory was not created: %v", err)
	}
}

func TestGetDataDirDefault(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG layout only applies on Linux/Unix")
	}
	t.Setenv(dataDirEnvVar, "")

	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	got, err := getDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(xdg, appDirName) {
		t.Errorf("expected XDG data dir, got %s", got)
	}

	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)
	got, err = getDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, filepath.Join(home, ".local", "share")) {
		t.Errorf("expected ~/.local/share prefix, got %s", got)
	}
}

func TestGetResultsDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(dataDirEnvVar, dir)

	got, err := getResultsDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "results") {
		t.Errorf("unexpected results dir %s", got)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Errorf("results dir not created: %v", err)
	}
}
