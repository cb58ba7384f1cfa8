package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type electionRepository struct {
	db *sql.DB
}

func NewElectionRepository(db *sql.DB) ports.ElectionRepository {
	return &electionRepository{
		db: db,
	}
}

func (r *electionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Election, error) {
	query := `
		SELECT id, name, status, opens_at, closes_at
		FROM elections
		WHERE id = $1
	`

	var election domain.Election
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&election.ID, &election.Name, &election.Status, &election.OpensAt, &election.ClosesAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrElectionNotFound
		}
		return nil, fmt.Errorf("failed to get election: %w", err)
	}

	return &election, nil
}

func (r *electionRepository) ListCandidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	query := `
		SELECT id, election_id, name, party
		FROM candidates
		WHERE election_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.Name, &c.Party); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return candidates, nil
}
