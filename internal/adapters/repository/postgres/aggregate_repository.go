package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type aggregateRepository struct {
	db *sql.DB
}

func NewAggregateRepository(db *sql.DB) ports.AggregateRepository {
	return &aggregateRepository{
		db: db,
	}
}

// Increment records the (ballot, level) application and bumps the counter
// in one transaction. The counter update is an in-place ADD, so concurrent
// increments on a hot row queue on its lock instead of overwriting.
func (r *aggregateRepository) Increment(ctx context.Context, inc domain.TallyIncrement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if inc.BallotID != uuid.Nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tally_applications (ballot_id, level)
			VALUES ($1, $2)
			ON CONFLICT (ballot_id, level) DO NOTHING
		`, inc.BallotID, inc.Key.Level)
		if err != nil {
			return fmt.Errorf("failed to record tally application: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return nil
		}
	}

	query := `
		INSERT INTO aggregates (level, location_id, election_id, candidate_id, vote_count, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (level, location_id, election_id, candidate_id) DO UPDATE
		SET vote_count = aggregates.vote_count + EXCLUDED.vote_count,
		    last_updated_at = NOW()
	`
	k := inc.Key
	if _, err := tx.ExecContext(ctx, query, k.Level, k.LocationID, k.ElectionID, k.CandidateID, inc.By); err != nil {
		return fmt.Errorf("failed to increment %s counter: %w", k.Level, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *aggregateRepository) Query(ctx context.Context, level domain.Level, locationID string, electionID uuid.UUID) ([]domain.AggregateCounter, error) {
	query := `
		SELECT level, location_id, election_id, candidate_id, vote_count, last_updated_at
		FROM aggregates
		WHERE level = $1 AND location_id = $2 AND election_id = $3
	`
	rows, err := r.db.QueryContext(ctx, query, level, locationID, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var counters []domain.AggregateCounter
	for rows.Next() {
		var c domain.AggregateCounter
		if err := rows.Scan(&c.Level, &c.LocationID, &c.ElectionID, &c.CandidateID, &c.VoteCount, &c.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregates: %w", err)
	}
	return counters, nil
}
