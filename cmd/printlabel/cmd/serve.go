package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ketutoka/printlabel/internal/config"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/server"
	"github.com/ketutoka/printlabel/internal/version"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP label server",
	Long: `Start an HTTP server that renders labels on request.

Endpoints:
  POST /labels/render   - Render a label to the output directory (JSON)
  POST /labels/preview  - Render a label in memory and return PNG
  GET  /labels/{file}   - Download a rendered label
  GET  /profiles        - List paper profiles
  GET  /health          - Health check
  GET  /metrics         - Prometheus metrics
  GET  /ws/preview      - WebSocket live preview

Examples:
  printlabel serve
  printlabel serve --port 8080 --composers 4
  printlabel serve --host 0.0.0.0 --rate-limit-enabled --requests-per-minute 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		srv, cleanup, err := newLabelServer(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("starting label server", "addr", addr, "output_dir", cfg.Render.OutputDir)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-ctx.Done():
			slog.Info("shutdown requested")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
			return err
		}
		slog.Info("graceful shutdown completed")
		return nil
	},
}

// applyServeFlags copies changed serve flags over the configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-body-kb") {
		cfg.Server.MaxBodyKB, _ = f.GetInt("max-body-kb")
	}
	if f.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("composers") {
		cfg.Server.Composers, _ = f.GetInt("composers")
	}
	if f.Changed("rate-limit-enabled") {
		cfg.Server.RateLimit.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		cfg.Server.RateLimit.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		cfg.Server.RateLimit.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		cfg.Server.RateLimit.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
}

// newLabelServer wires composers, sink and rate limiter into a server. The
// returned cleanup closes every composer the pool created.
func newLabelServer(cfg *config.Config) (*server.Server, func(), error) {
	sink := cfg.ToSink()
	var (
		mu        sync.Mutex
		composers []*label.Composer
	)
	newRenderer := func() server.Renderer {
		c := label.NewComposer(cfg.ToComposerOptions(sink))
		mu.Lock()
		composers = append(composers, c)
		mu.Unlock()
		return c
	}
	cleanup := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range composers {
			_ = c.Close()
		}
	}

	var limiter *server.RateLimiter
	if rl := cfg.Server.RateLimit; rl.Enabled {
		limiter = server.NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay)
	}

	srv, err := server.NewServer(server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxBodyKB:   int64(cfg.Server.MaxBodyKB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		OutputDir:   sink.Dir(),
		Composers:   cfg.Server.Composers,
		NewRenderer: newRenderer,
		RateLimiter: limiter,
		Version:     version.Version,
		Logger:      slog.Default(),
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, cleanup, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-body-kb", 64, "maximum request body size in KB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("composers", 0, "number of label composers (default: number of CPUs)")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 10000, "maximum requests per day per client")
}
