package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
)

// ElectionRepository is read-only: elections and candidates are managed
// by the administrative process.
type ElectionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Election, error)
	ListCandidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error)
}
