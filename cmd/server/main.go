package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/votewatch/internal/adapters/handler/http"
	"github.com/vncsmyrnk/votewatch/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/votewatch/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votewatch/internal/config"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

type repositories struct {
	elections  ports.ElectionRepository
	registry   ports.CredentialVerifier
	voters     ports.VoterRepository
	ballots    ports.BallotRepository
	aggregates ports.AggregateRepository
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	cfg, err := config.Load("server", os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	repos, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("storage unavailable", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	reconciler := services.NewReconciliationService(repos.ballots, repos.aggregates, services.ReconcilerOptions{
		Grace:     cfg.Reconcile.Grace,
		BatchSize: cfg.Reconcile.Batch,
	}, logger)
	voterSvc := services.NewVoterService(repos.registry, repos.voters, logger)
	voteSvc := services.NewVoteService(repos.elections, repos.voters, repos.ballots, repos.aggregates, reconciler, logger)
	resultSvc := services.NewResultService(repos.elections, repos.aggregates)

	handler := http.NewHandler(
		http.NewVoterHandler(voterSvc, voteSvc),
		http.NewVoteHandler(voteSvc),
		http.NewResultHandler(resultSvc),
		[]byte(cfg.JWTSecret),
	)
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reconciler.Run(ctx, cfg.Reconcile.Interval)

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// openStore builds the repositories for the configured driver. The memory
// driver starts empty and nothing seeds it, so every election and registry
// lookup misses until a test populates the store.
func openStore(cfg config.Config, logger *slog.Logger) (repositories, func(), error) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("memory storage is empty and not persisted; use it for tests only",
			"event", "storage_memory_selected",
			"module", "cmd/server",
			"layer", "bootstrap",
		)
		store := memory.NewStore()
		return repositories{
			elections:  store,
			registry:   store,
			voters:     store.Voters(),
			ballots:    store.Ballots(),
			aggregates: store,
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DB.ConnString())
	if err != nil {
		return repositories{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return repositories{}, nil, err
	}

	return repositories{
		elections:  postgres.NewElectionRepository(db),
		registry:   postgres.NewCredentialRegistry(db),
		voters:     postgres.NewVoterRepository(db),
		ballots:    postgres.NewBallotRepository(db),
		aggregates: postgres.NewAggregateRepository(db),
	}, func() { db.Close() }, nil
}
