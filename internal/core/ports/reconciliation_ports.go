package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TallyQueue receives ballots whose tally propagation did not complete.
type TallyQueue interface {
	Enqueue(ballotID uuid.UUID)
}

// TallyDrift is a candidate whose NATIONAL counter disagrees with the
// number of committed ballots.
type TallyDrift struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Ballots     int64     `json:"ballots"`
	National    int64     `json:"national"`
}

type ReconciliationService interface {
	TallyQueue
	RunOnce(ctx context.Context) (int, error)
	Run(ctx context.Context, interval time.Duration)
	CheckTallies(ctx context.Context, electionID uuid.UUID) ([]TallyDrift, error)
}
