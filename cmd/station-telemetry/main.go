package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	httpapi "github.com/didttdevs/RAMF-MOBILE-sub001/internal/api/http"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/config"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/scheduler"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/transport"
)

const serviceName = "station-telemetry"

func main() {
	app := &cli.Command{
		Name:  serviceName,
		Usage: "Weather station telemetry sync service",
		Commands: []*cli.Command{
			serveCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Sync station data and serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file to load before reading the environment",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var envFiles []string
			if f := cmd.String("env-file"); f != "" {
				envFiles = append(envFiles, f)
			}
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.InitLogger(cfg.Log); err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := telemetry.NewTokenSession(cfg.API.Token)
	if !session.IsAuthenticated() {
		logger.Warn().Msg("no API token configured; only the station list is available")
	}

	tr, err := transport.NewHTTPTransport(cfg.API.BaseURL, cfg.API.Timeout, session)
	if err != nil {
		return err
	}

	sessionSignal := orchestrator.NewSessionSignal()
	repo := telemetry.NewRepository(tr, session,
		telemetry.WithTTLs(cfg.TTLs()),
		telemetry.WithRetryPolicy(cfg.RetryPolicy()),
		telemetry.WithBreaker(cfg.BreakerConfig()),
		telemetry.WithSessionNotifier(sessionSignal),
	)
	orch := orchestrator.New(repo, sessionSignal, cfg.Orchestrator())
	defer orch.Close()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-orch.SessionExpired():
				logger.Error().Msg("API session expired; renew TELEMETRY_API_TOKEN and restart")
			}
		}
	}()

	go func() {
		if err := orch.LoadStations(ctx); err != nil {
			logger.Error().Err(err).Msg("initial station load failed")
		}
	}()

	sched := scheduler.New(orch, repo, cfg.Sync.RefreshInterval, cfg.Sync.SweepInterval)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
			"state":   orch.CurrentStatus(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	shutdown := make(chan struct{})
	httpapi.RegisterRoutes(app, orch, shutdown)

	go func() {
		logger.Info().Str("port", cfg.HTTP.Port).Msg("http server listening")
		if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
			logger.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	<-ctx.Done()
	close(shutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	return nil
}
