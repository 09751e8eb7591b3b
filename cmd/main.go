package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/nutrition-proxy/config"
	"github.com/angeloszaimis/nutrition-proxy/internal/handler"
	"github.com/angeloszaimis/nutrition-proxy/internal/httpserver"
	"github.com/angeloszaimis/nutrition-proxy/internal/metrics"
	"github.com/angeloszaimis/nutrition-proxy/internal/upstream"
	"github.com/angeloszaimis/nutrition-proxy/pkg/logger"
)

const (
	name             = "nutrition-proxy"
	metricsBufferLen = 1000
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		slog.Error("Command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: "Proxy food descriptions and photos to a generative AI provider for nutrition estimates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default is config.yaml in ./config or the working directory)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			estimateCmd(),
			recognizeCmd(),
		},
		Action: runServe,
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API and static client (default)",
		Action: runServe,
	}
}

// loadConfig loads the configuration and builds a logger writing to w.
func loadConfig(cmd *cli.Command, w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
		if err := cfg.Logging.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	log := logger.NewWithWriter(w, cfg.Logging.Level, true, cfg.Server.Environment)
	return cfg, log, nil
}

func newUpstream(cfg *config.Config, log *slog.Logger, opts ...upstream.Option) (*upstream.Client, error) {
	delay := cfg.Retry.InitialDelayDuration()

	opts = append([]upstream.Option{
		upstream.WithLogger(log.With(slog.String("component", "upstream"))),
	}, opts...)

	return upstream.New(upstream.Config{
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.BaseURL,
		Model:       cfg.Provider.Model,
		Timeout:     cfg.Provider.TimeoutDuration(),
		TextPolicy:  upstream.RetryPolicy{MaxAttempts: cfg.Retry.TextAttempts, InitialDelay: delay},
		ImagePolicy: upstream.RetryPolicy{MaxAttempts: cfg.Retry.ImageAttempts, InitialDelay: delay},
	}, opts...)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd, os.Stdout)
	if err != nil {
		return err
	}

	if cfg.Provider.APIKey == "" {
		log.Warn("Provider API key not configured, nutrition requests will fail until it is set")
	}
	if _, err := os.Stat(cfg.Server.StaticDir); err != nil {
		log.Warn("Static directory not available", slog.String("dir", cfg.Server.StaticDir), slog.Any("err", err))
	}

	collector := metrics.NewCollector(metricsBufferLen, log)

	client, err := newUpstream(cfg, log, upstream.WithObserver(collector))
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	nutritionHandler := handler.New(log, client, collector, handler.EnvInfo{
		Environment: cfg.Server.Environment,
		Model:       client.Model(),
		HasAPIKey:   client.HasCredential(),
		StartedAt:   time.Now(),
	})

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(nutritionHandler, cfg.Server, log))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		collector.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Server starting",
			slog.String("address", srv.Addr()),
			slog.String("model", client.Model()),
			slog.Int("text_attempts", cfg.Retry.TextAttempts),
			slog.Int("image_attempts", cfg.Retry.ImageAttempts))

		if err := srv.Start(); err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")

		if err := srv.Shutdown(context.Background()); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("error during shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
