// Command server runs the prediction API: an HTTP surface over the local
// asynchronous job emulation layer wrapping the synchronous vendor API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/api"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/config"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/hook"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/store"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	submitter := upstream.NewHTTPSubmitter(
		cfg.Upstream.BaseURL,
		cfg.Upstream.APIKey,
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
	)

	hooks := hook.NewRegistry(logger)
	hooks.Register(hook.NewLoggingHook(logger))

	s := store.New(cfg.Store, submitter,
		store.WithLogger(logger),
		store.WithHooks(hooks),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(s, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.Server.Addr))
		if serveErr := srv.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("http shutdown", slog.String("error", shutdownErr.Error()))
		}

		s.Dispose()
		return nil
	})

	return g.Wait()
}
