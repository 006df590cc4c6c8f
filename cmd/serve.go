package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/api"
	"github.com/khanhnv2901/seca-markup/internal/history"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scanner as a REST API service",
	Long: `Serve POST /api/v1/scan and /api/v1/scan/text, plus the rule catalog and
health endpoints. Every request runs one independent scan.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		logger := loggerFrom(appCtx)
		cfg := cliConfig.Serve

		resultsDir := ""
		if appCtx != nil {
			resultsDir = appCtx.ResultsDir
		}

		apiCfg, err := buildAPIConfig(cfg, cliConfig.Scan, logger.Desugar())
		if err != nil {
			return err
		}

		health := &healthAPIService{resultsDir: resultsDir}
		if cliConfig.History.Enabled {
			store, err := openHistory(cmd.Context(), cliConfig.History, resultsDir, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			apiCfg.History = store
			health.store = store
		}
		apiCfg.Health = health

		httpServer := &http.Server{
			Addr:         cfg.Addr,
			Handler:      api.NewServer(apiCfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		fmt.Fprintf(cmd.OutOrStdout(), "%s API server listening on %s (history: %t)\n", colorInfo("→"), cfg.Addr, cliConfig.History.Enabled)
		fmt.Fprintf(cmd.OutOrStdout(), "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
		return serveUntilSignal(httpServer, shutdown, cfg.ShutdownTimeout, cmd.OutOrStdout())
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cliConfig.Serve.Addr, "addr", cliConfig.Serve.Addr, "address for the API server")
	f.StringVar(&cliConfig.Serve.AuthToken, "auth-token", "", "optional shared secret expected in X-Auth-Token")
	f.DurationVar(&cliConfig.Serve.ShutdownTimeout, "shutdown-timeout", cliConfig.Serve.ShutdownTimeout, "graceful shutdown timeout")
	f.StringSliceVar(&cliConfig.Serve.CORSOrigins, "cors-origins", nil, "allowed CORS origins (empty = allow all)")
	f.StringSliceVar(&cliConfig.Serve.TrustedProxies, "trusted-proxies", nil, "proxy IPs or CIDRs whose X-Forwarded-For is trusted (empty = ignore the header)")
	f.IntVar(&cliConfig.Serve.RateLimit, "rate-limit", cliConfig.Serve.RateLimit, "requests per second per client IP (0 = disabled)")
	f.IntVar(&cliConfig.Serve.RateBurst, "rate-burst", cliConfig.Serve.RateBurst, "rate limit burst size")
	f.BoolVar(&cliConfig.History.Enabled, "history", cliConfig.History.Enabled, "record API scans in the local scan history")
}

func buildAPIConfig(cfg ServeConfig, scan ScanConfig, logger *zap.Logger) (api.Config, error) {
	trusted, err := api.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Analyzer: analyzer.New(
			analyzer.WithLogger(logger),
			analyzer.WithMaxInputBytes(scan.MaxInputBytes),
		),
		AuthToken:      cfg.AuthToken,
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		TrustedProxies: trusted,
	}, nil
}

// serveUntilSignal runs srv until it fails or a signal arrives, then shuts
// it down within timeout.
func serveUntilSignal(srv *http.Server, shutdown <-chan os.Signal, timeout time.Duration, out io.Writer) error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		fmt.Fprintf(out, "\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			if closeErr := srv.Close(); closeErr != nil {
				return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
			}
			return fmt.Errorf("failed to gracefully shutdown server: %w", err)
		}

		fmt.Fprintf(out, "%s Server shutdown complete\n", colorInfo("✓"))
	}
	return nil
}

type healthAPIService struct {
	resultsDir string
	store      *history.Store
}

func (s *healthAPIService) Check(ctx context.Context) error {
	if s.resultsDir == "" {
		return fmt.Errorf("results directory not configured")
	}
	return nil
}

func (s *healthAPIService) Ready(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}
