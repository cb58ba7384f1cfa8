package domain

import (
	"time"

	"github.com/google/uuid"
)

type ElectionStatus string

const (
	ElectionScheduled ElectionStatus = "SCHEDULED"
	ElectionOpen      ElectionStatus = "OPEN"
	ElectionPaused    ElectionStatus = "PAUSED"
	ElectionClosed    ElectionStatus = "CLOSED"
)

type Election struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Status   ElectionStatus `json:"status"`
	OpensAt  *time.Time     `json:"opens_at,omitempty"`
	ClosesAt *time.Time     `json:"closes_at,omitempty"`
}

// AcceptsBallots reports whether ballots may be cast right now.
func (e *Election) AcceptsBallots() bool {
	return e.Status == ElectionOpen
}

type Candidate struct {
	ID         uuid.UUID `json:"id"`
	ElectionID uuid.UUID `json:"election_id"`
	Name       string    `json:"name"`
	Party      string    `json:"party,omitempty"`
}
