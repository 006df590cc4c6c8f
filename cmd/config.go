package cmd

import (
	"path/filepath"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/render"
	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultScanConcurrency   = 4
	defaultServeAddr         = "127.0.0.1:8080"
	defaultServeRateLimit    = 10
	defaultServeRateBurst    = 20
	defaultShutdownTimeout   = 30 * time.Second
	defaultHistoryFileName   = "history.db"
	defaultRulesFormat       = "table"
	defaultHistoryListFormat = "table"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Scan    ScanConfig
	History HistoryConfig
	Serve   ServeConfig
}

// ScanConfig holds the settings of the scan command.
type ScanConfig struct {
	Format        string
	FailUnder     int
	MaxInputBytes int
	DisabledRules []string
	Concurrency   int
	RateLimit     int
	Progress      bool
}

// HistoryConfig controls the local scan history database.
type HistoryConfig struct {
	Enabled       bool
	Path          string
	RetentionDays int
}

// ServeConfig holds the settings of the API server.
type ServeConfig struct {
	Addr            string
	AuthToken       string
	RateLimit       int
	RateBurst       int
	CORSOrigins     []string
	TrustedProxies  []string
	ShutdownTimeout time.Duration
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Scan: ScanConfig{
			Format:        string(render.FormatText),
			FailUnder:     consts.DefaultFailUnder,
			MaxInputBytes: consts.DefaultMaxInputBytes,
			Concurrency:   defaultScanConcurrency,
			Progress:      true,
		},
		History: HistoryConfig{
			Enabled: false,
		},
		Serve: ServeConfig{
			Addr:            defaultServeAddr,
			RateLimit:       defaultServeRateLimit,
			RateBurst:       defaultServeRateBurst,
			ShutdownTimeout: defaultShutdownTimeout,
		},
	}
}

// historyPath returns the configured database path, or history.db inside
// the results directory.
func (c HistoryConfig) historyPath(resultsDir string) string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(resultsDir, defaultHistoryFileName)
}

// applyConfigDefaults merges config file and environment values into the
// runtime config when the user did not explicitly set the matching flag.
func applyConfigDefaults(cmd *cobra.Command) {
	scanFlags := scanCmd.Flags()
	if viper.IsSet("scan.format") {
		applyStringDefault(scanFlags, "format", viper.GetString("scan.format"), func(v string) {
			cliConfig.Scan.Format = v
		})
	}
	if viper.IsSet("scan.fail_under") {
		applyIntDefault(scanFlags, "fail-under", viper.GetInt("scan.fail_under"), func(v int) {
			cliConfig.Scan.FailUnder = v
		})
	}
	if viper.IsSet("scan.max_input_bytes") {
		applyIntDefault(scanFlags, "max-bytes", viper.GetInt("scan.max_input_bytes"), func(v int) {
			cliConfig.Scan.MaxInputBytes = v
		})
	}
	if viper.IsSet("scan.disabled_rules") {
		applyStringSliceDefault(scanFlags, "disable-rule", viper.GetStringSlice("scan.disabled_rules"), func(v []string) {
			cliConfig.Scan.DisabledRules = v
		})
	}
	if viper.IsSet("scan.concurrency") {
		applyIntDefault(scanFlags, "concurrency", viper.GetInt("scan.concurrency"), func(v int) {
			cliConfig.Scan.Concurrency = v
		})
	}
	if viper.IsSet("scan.rate_limit") {
		applyIntDefault(scanFlags, "rate-limit", viper.GetInt("scan.rate_limit"), func(v int) {
			cliConfig.Scan.RateLimit = v
		})
	}

	if viper.IsSet("history.enabled") {
		applyBoolDefault(cmd.Flags(), "history", viper.GetBool("history.enabled"), func(v bool) {
			cliConfig.History.Enabled = v
		})
	}
	if viper.IsSet("history.path") {
		cliConfig.History.Path = viper.GetString("history.path")
	}
	if viper.IsSet("history.retention_days") {
		cliConfig.History.RetentionDays = viper.GetInt("history.retention_days")
	}

	serveFlags := serveCmd.Flags()
	if viper.IsSet("serve.addr") {
		applyStringDefault(serveFlags, "addr", viper.GetString("serve.addr"), func(v string) {
			cliConfig.Serve.Addr = v
		})
	}
	if viper.IsSet("serve.auth_token") {
		applyStringDefault(serveFlags, "auth-token", viper.GetString("serve.auth_token"), func(v string) {
			cliConfig.Serve.AuthToken = v
		})
	}
	if viper.IsSet("serve.rate_limit") {
		applyIntDefault(serveFlags, "rate-limit", viper.GetInt("serve.rate_limit"), func(v int) {
			cliConfig.Serve.RateLimit = v
		})
	}
	if viper.IsSet("serve.rate_burst") {
		applyIntDefault(serveFlags, "rate-burst", viper.GetInt("serve.rate_burst"), func(v int) {
			cliConfig.Serve.RateBurst = v
		})
	}
	if viper.IsSet("serve.cors_origins") {
		applyStringSliceDefault(serveFlags, "cors-origins", viper.GetStringSlice("serve.cors_origins"), func(v []string) {
			cliConfig.Serve.CORSOrigins = v
		})
	}
	if viper.IsSet("serve.trusted_proxies") {
		applyStringSliceDefault(serveFlags, "trusted-proxies", viper.GetStringSlice("serve.trusted_proxies"), func(v []string) {
			cliConfig.Serve.TrustedProxies = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flagChanged(flags, name) || setter == nil {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flagChanged(flags, name) || setter == nil {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flagChanged(flags, name) || setter == nil {
		return
	}
	setter(value)
}

func applyStringSliceDefault(flags *pflag.FlagSet, name string, value []string, setter func([]string)) {
	if flagChanged(flags, name) || setter == nil {
		return
	}
	setter(value)
}

// flagChanged reports whether the user set the flag. A nil flag set counts
// as changed so nothing is applied to it.
func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return true
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}
