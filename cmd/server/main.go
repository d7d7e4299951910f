package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/anirudhp26/quickpoll/internal/config"
	"github.com/anirudhp26/quickpoll/internal/database"
	"github.com/anirudhp26/quickpoll/internal/hub"
	"github.com/anirudhp26/quickpoll/internal/identity"
	"github.com/anirudhp26/quickpoll/internal/logging"
	"github.com/anirudhp26/quickpoll/internal/redis"
	"github.com/anirudhp26/quickpoll/internal/scheduler"
	"github.com/anirudhp26/quickpoll/internal/server"
	"github.com/anirudhp26/quickpoll/internal/tally"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, liveHub *hub.Hub, simulator *scheduler.Simulator, sweeper *scheduler.Sweeper) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		simulator.Stop()
		sweeper.Stop()
		liveHub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	identityRepo := database.NewIdentityRepo(pool)
	pollRepo := database.NewPollRepo(pool)
	ledgerRepo := database.NewLedgerRepo(pool)

	resolver := identity.NewResolver(identityRepo)
	liveHub := hub.NewHub(clock, cfg.MaxWebSocketConnections)
	engine := tally.NewEngine(pollRepo, ledgerRepo, identityRepo, liveHub)
	rateLimiter := redis.NewRateLimiter(redisClient, clock, cfg.VoteRateCapacity, cfg.VoteRatePerMinute)

	provisionCtx, cancelProvision := context.WithTimeout(context.Background(), 30*time.Second)
	poolIDs, err := scheduler.EnsurePool(provisionCtx, identityRepo, cfg.SyntheticPoolSize)
	cancelProvision()
	if err != nil {
		slog.Error("Failed to provision synthetic identity pool", "error", err)
		os.Exit(1)
	}
	slog.Info("Synthetic identity pool ready", "size", len(poolIDs))

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	simulator := scheduler.NewSimulator(engine, pollRepo, ledgerRepo, liveHub, clock, cfg.SimulatorInterval, poolIDs)
	sweeper := scheduler.NewSweeper(pollRepo, liveHub, clock, cfg.SweeperInterval)
	go simulator.Run(jobCtx)
	go sweeper.Run(jobCtx)

	srv := server.NewServer(cfg, resolver, engine, pollRepo, ledgerRepo, liveHub, rateLimiter, pool, redisClient, clock)

	done := runGracefulShutdown(srv, liveHub, simulator, sweeper)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
