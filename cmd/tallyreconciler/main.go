package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/votewatch/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votewatch/internal/config"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load("tallyreconciler", os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	logger := cfg.NewLogger(os.Stdout)

	db, err := sql.Open("postgres", cfg.DB.ConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	ballotRepo := postgres.NewBallotRepository(db)
	aggregateRepo := postgres.NewAggregateRepository(db)

	reconciler := services.NewReconciliationService(ballotRepo, aggregateRepo, services.ReconcilerOptions{
		Grace:     cfg.Reconcile.Grace,
		BatchSize: cfg.Reconcile.Batch,
	}, logger)

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Println("Starting tally reconciliation job...")

	reconciled, err := reconciler.RunOnce(ctx)
	if err != nil {
		log.Fatalf("Error reconciling tallies (%d ballots reconciled): %v", reconciled, err)
	}

	log.Printf("Tally reconciliation completed successfully, %d ballots reconciled.", reconciled)
}
