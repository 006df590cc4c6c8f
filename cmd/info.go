package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show data directory paths and effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		if appCtx == nil {
			return fmt.Errorf("application context not initialised")
		}

		dataDir, err := getDataDir()
		if err != nil {
			return fmt.Errorf("failed to get data directory: %w", err)
		}

		cfg := appCtx.Config
		if cfg == nil {
			cfg = cliConfig
		}
		printInfo(cmd.OutOrStdout(), dataDir, appCtx.ResultsDir, viper.ConfigFileUsed(), cfg)
		return nil
	},
}

func existsMark(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return "✓ (exists)"
	}
	return "✗ (not created yet)"
}

func printInfo(out io.Writer, dataDir, resultsDir, configFile string, cfg *CLIConfig) {
	historyPath := cfg.History.historyPath(resultsDir)
	if configFile == "" {
		configFile = "~/.seca-markup.yaml ✗ (using defaults)"
	}

	disabled := "none"
	if len(cfg.Scan.DisabledRules) > 0 {
		disabled = strings.Join(cfg.Scan.DisabledRules, ", ")
	}

	fmt.Fprintln(out, "seca-markup System Information")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Platform:          %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Version:           %s\n", Version)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Data Locations:")
	fmt.Fprintf(out, "  Data Directory:     %s\n", dataDir)
	fmt.Fprintf(out, "  Results Directory:  %s %s\n", resultsDir, existsMark(resultsDir))
	fmt.Fprintf(out, "  History Database:   %s %s\n", historyPath, existsMark(historyPath))
	fmt.Fprintf(out, "Configuration File:   %s\n", configFile)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Scan Settings:")
	fmt.Fprintf(out, "  Format:             %s\n", cfg.Scan.Format)
	fmt.Fprintf(out, "  Max Input Bytes:    %d\n", cfg.Scan.MaxInputBytes)
	fmt.Fprintf(out, "  Fail Under:         %d\n", cfg.Scan.FailUnder)
	fmt.Fprintf(out, "  Disabled Rules:     %s\n", disabled)
	fmt.Fprintf(out, "  History Enabled:    %t\n", cfg.History.Enabled)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Environment variables use the %s_ prefix, e.g. %s_SCAN_FAIL_UNDER=70\n", envPrefix, envPrefix)
}
