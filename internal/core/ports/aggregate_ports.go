package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
)

type AggregateRepository interface {
	// Increment atomically adds inc.By to the counter, creating it if
	// absent. A (ballot, level) pair that was already applied is a no-op.
	Increment(ctx context.Context, inc domain.TallyIncrement) error
	Query(ctx context.Context, level domain.Level, locationID string, electionID uuid.UUID) ([]domain.AggregateCounter, error)
}

type ResultsInput struct {
	Level      domain.Level
	LocationID string
	ElectionID uuid.UUID
}

type ResultService interface {
	GetResults(ctx context.Context, input ResultsInput) (*domain.ResultSet, error)
}
