package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type voterRepository struct {
	db *sql.DB
}

func NewVoterRepository(db *sql.DB) ports.VoterRepository {
	return &voterRepository{db: db}
}

func (r *voterRepository) GetByID(ctx context.Context, id string) (*domain.Voter, error) {
	query := `
		SELECT id, is_verified, COALESCE(credential_hash, ''), COALESCE(card_hash, ''),
		       polling_unit_id, ward_id, lga_id, state_id,
		       has_voted, voted_election_id, voted_at, verified_at
		FROM voters
		WHERE id = $1
	`
	var (
		voter           domain.Voter
		votedElectionID uuid.NullUUID
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&voter.ID,
		&voter.IsVerified,
		&voter.CredentialHash,
		&voter.CardHash,
		&voter.Assignment.PollingUnitID,
		&voter.Assignment.WardID,
		&voter.Assignment.LGAID,
		&voter.Assignment.StateID,
		&voter.HasVoted,
		&votedElectionID,
		&voter.VotedAt,
		&voter.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoterNotFound
		}
		return nil, fmt.Errorf("failed to get voter: %w", err)
	}
	if votedElectionID.Valid {
		voter.VotedElectionID = &votedElectionID.UUID
	}
	return &voter, nil
}

// SaveVerification only writes while is_verified is false, so the first
// verification wins and later ones read back what it stored.
func (r *voterRepository) SaveVerification(ctx context.Context, voter *domain.Voter) (*domain.Voter, error) {
	query := `
		INSERT INTO voters (id, is_verified, credential_hash, card_hash, polling_unit_id, ward_id, lga_id, state_id, verified_at)
		VALUES ($1, TRUE, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET is_verified = TRUE,
		    credential_hash = EXCLUDED.credential_hash,
		    card_hash = EXCLUDED.card_hash,
		    polling_unit_id = EXCLUDED.polling_unit_id,
		    ward_id = EXCLUDED.ward_id,
		    lga_id = EXCLUDED.lga_id,
		    state_id = EXCLUDED.state_id,
		    verified_at = EXCLUDED.verified_at
		WHERE voters.is_verified = FALSE
	`
	a := voter.Assignment
	_, err := r.db.ExecContext(ctx, query,
		voter.ID, voter.CredentialHash, voter.CardHash,
		a.PollingUnitID, a.WardID, a.LGAID, a.StateID,
		voter.VerifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrCredentialClaimed
		}
		return nil, fmt.Errorf("failed to save verification: %w", err)
	}

	return r.GetByID(ctx, voter.ID)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
