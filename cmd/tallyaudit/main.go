package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/votewatch/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votewatch/internal/config"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

// tallyaudit compares an election's NATIONAL counters with its committed
// ballots and exits non-zero when they disagree.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load("tallyaudit", os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if len(cfg.Args) < 1 {
		log.Fatal("an election id is required.")
	}
	electionID, err := uuid.Parse(cfg.Args[0])
	if err != nil {
		log.Fatalf("invalid election id: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DB.ConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	reconciler := services.NewReconciliationService(
		postgres.NewBallotRepository(db),
		postgres.NewAggregateRepository(db),
		services.ReconcilerOptions{},
		cfg.NewLogger(os.Stderr),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	drift, err := reconciler.CheckTallies(ctx, electionID)
	if err != nil {
		log.Fatalf("Error checking tallies: %v", err)
	}
	if len(drift) == 0 {
		log.Println("Tallies match committed ballots.")
		return
	}

	if err := reportDrift(os.Stdout, drift); err != nil {
		log.Printf("Error writing drift report: %v", err)
	}
	log.Fatalf("%d candidates have drifted tallies", len(drift))
}

func reportDrift(w io.Writer, drift []ports.TallyDrift) error {
	if err := json.NewEncoder(w).Encode(drift); err != nil {
		return fmt.Errorf("failed to write drift report: %w", err)
	}
	return nil
}
