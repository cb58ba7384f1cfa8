package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ballot carries no reference to the voter who cast it.
type Ballot struct {
	ID          uuid.UUID     `json:"id"`
	ElectionID  uuid.UUID     `json:"election_id"`
	CandidateID uuid.UUID     `json:"candidate_id"`
	Assignment  GeoAssignment `json:"assignment"`
	CastAt      time.Time     `json:"cast_at"`
}

// AuditRecord links a voter to their ballot. It lives in a write-once log
// that the results path never reads.
type AuditRecord struct {
	BallotID    uuid.UUID
	VoterID     string
	ElectionID  uuid.UUID
	CandidateID uuid.UUID
	Assignment  GeoAssignment
	CastAt      time.Time
}

func NewAuditRecord(voterID string, ballot *Ballot) *AuditRecord {
	return &AuditRecord{
		BallotID:    ballot.ID,
		VoterID:     voterID,
		ElectionID:  ballot.ElectionID,
		CandidateID: ballot.CandidateID,
		Assignment:  ballot.Assignment,
		CastAt:      ballot.CastAt,
	}
}

type CastResult struct {
	BallotID uuid.UUID
	CastAt   time.Time
}
