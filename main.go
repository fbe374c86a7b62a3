package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"stepchess/internal/archive"
	"stepchess/internal/chessrules"
	"stepchess/internal/config"
	"stepchess/internal/cost"
	"stepchess/internal/game"
	"stepchess/internal/handlers"
	"stepchess/internal/leaderboard"
	"stepchess/internal/ledger"
	"stepchess/internal/logging"
	"stepchess/internal/matchmaking"
	"stepchess/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("stepchess stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	presets := cost.NewRegistry(cost.DefaultPresets()...)
	hub := game.NewHub()
	engine := game.NewEngine(store, presets, chessrules.New(), log.Named("game"), game.Options{
		AllowSelfPlay: cfg.AllowSelfPlay,
		Hub:           hub,
	})
	steps := ledger.New(store, ledger.Caps{
		MaxStepsPerCall: cfg.AntiCheat.MaxStepsPerCall,
		MaxStepsPerHour: cfg.AntiCheat.MaxStepsPerHour,
	}, log.Named("ledger"))
	board := leaderboard.New(store, log.Named("leaderboard"))
	engine.OnEnd(board.OnGameCompleted)

	if cfg.Archive.Enabled() {
		arch, err := archive.NewS3(ctx, cfg.Archive.Settings(), log.Named("archive"))
		if err != nil {
			return err
		}
		engine.OnEnd(arch.OnGameEnded)
	}

	pairer := matchmaking.New(store, engine, matchmaking.Settings{
		Preset: cfg.Matchmaking.DefaultPreset,
		Mode:   cfg.Matchmaking.DefaultMode,
	}, log.Named("matchmaking"))

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := pairer.ScheduleSweep(ctx, scheduler, cfg.Matchmaking.SweepInterval); err != nil {
		return fmt.Errorf("failed to schedule matchmaking sweep: %w", err)
	}
	if err := board.ScheduleSweep(ctx, scheduler, cfg.LeaderboardSweep); err != nil {
		return fmt.Errorf("failed to schedule leaderboard sweep: %w", err)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	go hub.Run(ctx)
	go pairer.Run(ctx)

	h := handlers.NewHandler(ctx, handlers.Handler{
		Engine:      engine,
		Ledger:      steps,
		Pairer:      pairer,
		Leaderboard: board,
		Log:         log.Named("http"),
		Commit:      commit,
		BuildDate:   buildDate,
	})
	app := handlers.NewApp(h, handlers.AppOptions{
		GatewayToken:   cfg.GatewayToken,
		RequestTimeout: cfg.RequestTimeout,
	})

	errc := make(chan error, 1)
	go func() {
		log.Info("stepchess listening",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("commit", commit),
		)
		errc <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore picks the durable store and mirrors it into redis when a redis
// url is configured.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Store, error) {
	var durable storage.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := storage.NewPostgres(cfg.DatabaseURL, cfg.Debug, log.Named("store"))
		if err != nil {
			return nil, err
		}
		durable = s
	case config.DriverMemory:
		durable = storage.NewMemory()
	default:
		return nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
	if cfg.RedisURL == "" {
		return durable, nil
	}
	live, err := storage.NewRedisCache(ctx, cfg.RedisURL, cfg.LiveCacheTTL)
	if err != nil {
		_ = durable.Close()
		return nil, err
	}
	return storage.NewMirrored(durable, live, log.Named("mirror")), nil
}
