package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "SECA_MARKUP"

var (
	cfgFile    string
	debugLog   bool
	noColor    bool
	resultsDir string
)

// AppContext carries what the root command resolved for its subcommands.
type AppContext struct {
	Logger     *zap.SugaredLogger
	ResultsDir string
	Config     *CLIConfig
}

type appContextKey struct{}

var globalAppContext *AppContext

var rootCmd = &cobra.Command{
	Use:           "seca-markup",
	Short:         "Static security analysis of HTML markup",
	Long:          "seca-markup inspects HTML markup for client-side security weaknesses and reports findings, a 0-100 score and a risk level.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		applyConfigDefaults(cmd)

		l, err := newLogger(debugLog)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger := l.Sugar()

		configureColor(noColor || viper.GetBool("no_color"), os.Stdout)

		dir, err := resolveResultsDir(cmd)
		if err != nil {
			return err
		}

		logger.Debugw("configuration loaded",
			"config_file", viper.ConfigFileUsed(),
			"results_dir", dir,
		)

		storeAppContext(cmd, &AppContext{
			Logger:     logger,
			ResultsDir: dir,
			Config:     cliConfig,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appCtx := getAppContext(cmd); appCtx != nil && appCtx.Logger != nil {
			_ = appCtx.Logger.Sync()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-markup.yaml)")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "directory for reports and scan history")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(infoCmd)
}

// initConfig reads the config file and binds SECA_MARKUP_* environment
// variables. A missing default config file is not an error.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".seca-markup")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// resolveResultsDir picks --results-dir, then results_dir from config, then
// the per-user data directory, and makes sure it exists.
func resolveResultsDir(cmd *cobra.Command) (string, error) {
	dir := resultsDir
	if f := cmd.Flags().Lookup("results-dir"); (f == nil || !f.Changed) && viper.IsSet("results_dir") {
		dir = viper.GetString("results_dir")
	}
	if dir == "" {
		var err error
		if dir, err = getResultsDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir, nil
}

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if cmd != nil && cmd.Context() != nil {
		if appCtx, ok := cmd.Context().Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

// loggerFrom returns the command logger, or a no-op logger before the root
// command has run.
func loggerFrom(appCtx *AppContext) *zap.SugaredLogger {
	if appCtx == nil || appCtx.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return appCtx.Logger
}
