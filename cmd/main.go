package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptodaily/internal/bot"
	"cryptodaily/internal/config"
	"cryptodaily/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "cryptodaily",
		Usage: "daily crypto snapshots: prices, news, memes and AI insights",
		Commands: []*cli.Command{
			serveCmd,
			refreshCmd,
			snapshotCmd,
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.ErrorContext(ctx, "Failed to run command",
			"error", err)

		stop()
		os.Exit(1)
	}
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the daily refresh scheduler, the Telegram bot and the metrics endpoint",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		start := time.Now()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		sched := scheduler.New(ctx, a.cfg.RefreshSpec, a.engine, a.log)
		if err = sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		a.log.InfoContext(ctx, "Scheduler is started",
			"spec", a.cfg.RefreshSpec)

		sched.RunAtStartup()

		if a.cfg.MetricsAddr != "" {
			go serveMetrics(ctx, a.cfg.MetricsAddr, a.log)
		}

		var botInst *bot.Bot
		if a.cfg.Token == "" {
			a.log.WarnContext(ctx, "TELEGRAM_TOKEN is missing so the bot is disabled",
				"envVar", "TELEGRAM_TOKEN")
		} else {
			botInst, err = bot.New(a.cfg.Token, bot.Deps{
				Users:    a.db,
				Composer: a.composer,
				Ledger:   a.ledger,
				Assets:   a.resolver,
				Clock:    a.clock,
			}, a.cfg.AllowedUsers, a.log)
			if err != nil {
				return fmt.Errorf("create bot: %w", err)
			}

			go botInst.Start(ctx)
			a.log.InfoContext(ctx, "Bot is started",
				"allowedUsersCount", len(a.cfg.AllowedUsers))
		}

		<-ctx.Done()
		a.log.InfoContext(ctx, "Shutdown signal is received",
			"uptimeSeconds", time.Since(start).Seconds())

		if botInst != nil {
			botInst.Stop()
			a.log.InfoContext(ctx, "Bot is stopped")
		}

		return nil
	},
}

var refreshCmd = &cli.Command{
	Name:  "refresh",
	Usage: "run one refresh pass and print its report",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		report, err := a.engine.Run(ctx)
		if printErr := printJSON(report); printErr != nil {
			return errors.Join(err, printErr)
		}

		return err
	},
}

var snapshotCmd = &cli.Command{
	Name:  "snapshot",
	Usage: "print today's snapshot for a user",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:     "user",
			Usage:    "user id",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "recompose from the latest content",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		userID := cctx.Int64("user")
		if err = a.db.EnsureUser(ctx, userID, a.clock.Now()); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}

		view, err := a.composer.ComposeOrGet(ctx, userID, cctx.Bool("refresh"))
		if err != nil {
			return fmt.Errorf("compose snapshot: %w", err)
		}

		return printJSON(view)
	},
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	return newApp(ctx, cfg, log)
}

func serveMetrics(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(shutdownCtx, "Failed to shut down metrics server",
				"error", err)
		}
	}()

	log.InfoContext(ctx, "Metrics server is started",
		"addr", addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Failed to serve metrics",
			"error", err,
			"addr", addr)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return nil
}
