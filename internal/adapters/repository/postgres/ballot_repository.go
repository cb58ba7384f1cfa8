package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type ballotRepository struct {
	db *sql.DB
}

func NewBallotRepository(db *sql.DB) ports.BallotRepository {
	return &ballotRepository{
		db: db,
	}
}

// WithinCastTx runs fn in one transaction. Any error from fn, including a
// failed guard, rolls back every write made through tx.
func (r *ballotRepository) WithinCastTx(ctx context.Context, fn func(ctx context.Context, tx ports.CastTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &castTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type castTx struct {
	tx *sql.Tx
}

func (t *castTx) InsertBallot(ctx context.Context, ballot *domain.Ballot) error {
	query := `
		INSERT INTO ballots (id, election_id, candidate_id, polling_unit_id, ward_id, lga_id, state_id, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	a := ballot.Assignment
	res, err := t.tx.ExecContext(ctx, query,
		ballot.ID, ballot.ElectionID, ballot.CandidateID,
		a.PollingUnitID, a.WardID, a.LGAID, a.StateID,
		ballot.CastAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ballot: %w", err)
	}
	return expectOneRow(res, domain.ErrBallotExists)
}

// MarkVoted is the exactly-once guard: concurrent updates of the same row
// serialize on its lock, and the loser re-evaluates has_voted = FALSE and
// matches nothing.
func (t *castTx) MarkVoted(ctx context.Context, voterID string, electionID uuid.UUID, at time.Time) error {
	query := `
		UPDATE voters
		SET has_voted = TRUE, voted_election_id = $2, voted_at = $3
		WHERE id = $1 AND is_verified = TRUE AND has_voted = FALSE
	`
	res, err := t.tx.ExecContext(ctx, query, voterID, electionID, at)
	if err != nil {
		return fmt.Errorf("failed to mark voter: %w", err)
	}
	return expectOneRow(res, domain.ErrAlreadyVoted)
}

func (t *castTx) AppendAudit(ctx context.Context, record *domain.AuditRecord) error {
	query := `
		INSERT INTO ballot_audit (ballot_id, voter_id, election_id, candidate_id, polling_unit_id, ward_id, lga_id, state_id, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	a := record.Assignment
	_, err := t.tx.ExecContext(ctx, query,
		record.BallotID, record.VoterID, record.ElectionID, record.CandidateID,
		a.PollingUnitID, a.WardID, a.LGAID, a.StateID,
		record.CastAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (r *ballotRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ballot, error) {
	query := `
		SELECT id, election_id, candidate_id, polling_unit_id, ward_id, lga_id, state_id, cast_at
		FROM ballots
		WHERE id = $1
	`
	ballot, err := scanBallot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBallotNotFound
		}
		return nil, fmt.Errorf("failed to get ballot: %w", err)
	}
	return ballot, nil
}

func (r *ballotRepository) ListUntallied(ctx context.Context, castBefore time.Time, limit int) ([]domain.Ballot, error) {
	query := `
		SELECT id, election_id, candidate_id, polling_unit_id, ward_id, lga_id, state_id, cast_at
		FROM ballots
		WHERE tallied_at IS NULL AND cast_at < $1
		ORDER BY cast_at
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, castBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list untallied ballots: %w", err)
	}
	defer rows.Close()

	var ballots []domain.Ballot
	for rows.Next() {
		ballot, err := scanBallot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		ballots = append(ballots, *ballot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ballots: %w", err)
	}
	return ballots, nil
}

func (r *ballotRepository) MarkTallied(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE ballots SET tallied_at = $2 WHERE id = $1 AND tallied_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark ballot tallied: %w", err)
	}
	return nil
}

func (r *ballotRepository) CountByCandidate(ctx context.Context, electionID uuid.UUID) (map[uuid.UUID]int64, error) {
	query := `
		SELECT candidate_id, COUNT(*)
		FROM ballots
		WHERE election_id = $1
		GROUP BY candidate_id
	`
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var (
			candidateID uuid.UUID
			count       int64
		)
		if err := rows.Scan(&candidateID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ballot count: %w", err)
		}
		counts[candidateID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ballot counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBallot(row rowScanner) (*domain.Ballot, error) {
	var b domain.Ballot
	err := row.Scan(
		&b.ID, &b.ElectionID, &b.CandidateID,
		&b.Assignment.PollingUnitID, &b.Assignment.WardID, &b.Assignment.LGAID, &b.Assignment.StateID,
		&b.CastAt,
	)
	if err != nil {
		return nil, err
	}
	b.CastAt = b.CastAt.UTC()
	return &b, nil
}

func expectOneRow(res sql.Result, onZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return onZero
	}
	return nil
}
