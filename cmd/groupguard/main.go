// Package main is the entry point for the groupguard moderation bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/bot"
	"github.com/ihiteshgupta/groupguard/internal/config"
	"github.com/ihiteshgupta/groupguard/internal/groups"
	"github.com/ihiteshgupta/groupguard/internal/health"
	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/permission"
	"github.com/ihiteshgupta/groupguard/internal/presence"
	"github.com/ihiteshgupta/groupguard/internal/scheduler"
	"github.com/ihiteshgupta/groupguard/internal/state"
	"github.com/ihiteshgupta/groupguard/internal/store"
	"github.com/ihiteshgupta/groupguard/internal/telegram"
	"github.com/ihiteshgupta/groupguard/pkg/api"
)

const (
	shutdownTimeout = 10 * time.Second
	restartNotice   = 2 * time.Second
)

func main() {
	app := &cli.App{
		Name:  "groupguard",
		Usage: "Telegram group moderation bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to config file",
				EnvVars: []string{"GROUPGUARD_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading the environment",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log level (debug, info, warn, error)",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "groupguard: %v\n", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	if err := config.LoadDotEnv(cctx.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(cctx.String("config"))
	if err != nil {
		return err
	}
	if lvl := cctx.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	code, err := serve(cctx.Context, cfg, logger)
	if err != nil {
		logger.Error("groupguard failed", zap.Error(err))
		return err
	}
	if code != api.ExitShutdown {
		return cli.Exit("", code)
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.LogFormat == "text" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

// serve wires every component and blocks until a signal or an owner command
// ends the process. It returns the requested exit code.
func serve(parent context.Context, cfg *config.Config, logger *zap.Logger) (int, error) {
	logger.Info("groupguard starting",
		zap.String("store_path", cfg.StorePath),
		zap.String("log_level", cfg.LogLevel),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0700); err != nil {
		return 1, fmt.Errorf("failed to create data directory: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	storeDB, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return 1, fmt.Errorf("failed to initialize store: %w", err)
	}
	defer storeDB.Close()

	if cfg.LegacyImport {
		res, err := storeDB.ImportLegacy(ctx, cfg.DataDir, time.Now())
		if err != nil {
			return 1, fmt.Errorf("failed to import legacy data: %w", err)
		}
		logger.Info("legacy data imported", zap.Int("groups", res.Groups), zap.Int("sudo_admins", res.Admins))
	}

	action, err := moderation.ParseWarnAction(cfg.WarnAction)
	if err != nil {
		return 1, err
	}
	settings := moderation.NewSettings(cfg.WarnLimit, action, cfg.ModLogChat, storeDB.Settings, logger)
	if err := settings.Load(ctx); err != nil {
		return 1, err
	}

	afkStore, closeAFK, err := newPresenceStore(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer closeAFK()

	monitor := health.NewMonitor(cfg, logger)
	monitor.AddCheck("store", storeDB.Ping)
	if err := monitor.Start(); err != nil {
		return 1, err
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		monitor.Stop(stopCtx)
	}()

	client, err := telegram.NewClient(ctx, cfg, monitor, logger)
	if err != nil {
		return 1, err
	}

	tracker, err := presence.NewTracker(afkStore, cfg.UsernameCacheSize, logger)
	if err != nil {
		return 1, err
	}
	restrictions := moderation.NewTracker(logger)
	restrictions.OnTransition(func(_ context.Context, _, to state.State, trigger state.Trigger) {
		monitor.RecordTransition(to.String(), trigger.String())
	})
	evaluator := permission.NewEvaluator(client, cfg.OwnerID, logger)
	registry := groups.NewRegistry(storeDB.Groups, client, logger)
	runner := scheduler.NewRunner(ctx, logger)
	defer runner.Stop()

	exitCh := make(chan int, 1)
	handler := api.NewHandler(api.Deps{
		Config:     cfg,
		Client:     client,
		Sudo:       storeDB.Sudo,
		Actions:    storeDB.Actions,
		Evaluator:  evaluator,
		Moderation: moderation.NewService(client, settings, logger,
			moderation.WithActions(storeDB.Actions),
			moderation.WithTracker(restrictions),
		),
		Registry:   registry,
		Presence:   tracker,
		Scheduler:  runner,
		Health:     monitor,
		Exit: func(code int) {
			select {
			case exitCh <- code:
			default:
			}
		},
		Log: logger,
	})

	b := bot.New(bot.Deps{
		Handler:   handler,
		Client:    client,
		Evaluator: evaluator,
		Presence:  tracker,
		Registry:  registry,
		Health:    monitor,
		Log:       logger,
	})
	defer b.Stop()

	if err := runner.Daily("verify-groups", cfg.VerifyAt, func(ctx context.Context) {
		res, err := registry.VerifyAll(ctx)
		if err != nil {
			logger.Error("group verification failed", zap.Error(err))
			return
		}
		logger.Info("group verification complete",
			zap.Int("kept", res.Kept),
			zap.Int("pruned", res.Pruned),
			zap.Int("failed", res.Failed),
		)
	}); err != nil {
		return 1, err
	}

	scheduleRestartNotice(runner, b, cfg.RestartMarkerPath, logger)

	go client.Poll(ctx, b.EmitEvent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("groupguard running", zap.String("bot", client.Self().Username))

	code := api.ExitShutdown
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case code = <-exitCh:
		logger.Info("exit requested", zap.Int("code", code))
	case <-parent.Done():
	}

	cancel()
	logger.Info("groupguard stopped")
	return code, nil
}

// newPresenceStore picks Redis when configured, otherwise process memory.
func newPresenceStore(ctx context.Context, cfg *config.Config) (presence.Store, func(), error) {
	if cfg.RedisURL == "" {
		return presence.NewMemStore(), func() {}, nil
	}
	rs, err := presence.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rs, func() { rs.Close() }, nil
}

// scheduleRestartNotice answers the /restart message once polling is up.
func scheduleRestartNotice(runner *scheduler.Runner, b *bot.Bot, path string, logger *zap.Logger) {
	marker, ok, err := scheduler.ConsumeRestartMarker(path)
	if err != nil {
		logger.Warn("failed to read restart marker", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	runner.After(restartNotice, "restart-notice", func(ctx context.Context) {
		if err := b.NotifyRestart(ctx, marker); err != nil {
			logger.Warn("failed to send restart notice", zap.Int64("chat_id", marker.ChatID), zap.Error(err))
		}
	})
}
