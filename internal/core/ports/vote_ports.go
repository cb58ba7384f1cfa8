package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
)

// CastTx is the single atomic unit of a cast. Nothing written through it
// is visible unless the enclosing WithinCastTx callback returns nil.
type CastTx interface {
	// InsertBallot fails with domain.ErrBallotExists if the id is taken.
	InsertBallot(ctx context.Context, ballot *domain.Ballot) error
	// MarkVoted flips the has-voted flag, failing with
	// domain.ErrAlreadyVoted unless it is currently off.
	MarkVoted(ctx context.Context, voterID string, electionID uuid.UUID, at time.Time) error
	AppendAudit(ctx context.Context, record *domain.AuditRecord) error
}

type BallotRepository interface {
	WithinCastTx(ctx context.Context, fn func(ctx context.Context, tx CastTx) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Ballot, error)
	// ListUntallied returns ballots cast before castBefore whose tally
	// propagation was never confirmed, oldest first.
	ListUntallied(ctx context.Context, castBefore time.Time, limit int) ([]domain.Ballot, error)
	MarkTallied(ctx context.Context, id uuid.UUID, at time.Time) error
	CountByCandidate(ctx context.Context, electionID uuid.UUID) (map[uuid.UUID]int64, error)
}

type VoteInput struct {
	VoterID     string
	ElectionID  uuid.UUID
	CandidateID uuid.UUID
}

// VotingStatus mirrors the cast path: HasVoted is the voter's single
// has-voted flag, whichever election set it.
type VotingStatus struct {
	ElectionID      uuid.UUID  `json:"election_id"`
	IsVerified      bool       `json:"is_verified"`
	HasVoted        bool       `json:"has_voted"`
	VotedElectionID *uuid.UUID `json:"voted_election_id,omitempty"`
	VotedAt         *time.Time `json:"voted_at,omitempty"`
}

type VoteService interface {
	CastVote(ctx context.Context, input VoteInput) (*domain.CastResult, error)
	VotingStatus(ctx context.Context, voterID string, electionID uuid.UUID) (*VotingStatus, error)
}
