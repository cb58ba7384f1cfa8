package domain

import (
	"time"

	"github.com/google/uuid"
)

// GeoAssignment places a voter, and every ballot they cast, in the
// polling unit → ward → LGA → state hierarchy.
type GeoAssignment struct {
	PollingUnitID string `json:"polling_unit_id"`
	WardID        string `json:"ward_id"`
	LGAID         string `json:"lga_id"`
	StateID       string `json:"state_id"`
}

type Voter struct {
	ID              string        `json:"id"`
	IsVerified      bool          `json:"is_verified"`
	CredentialHash  string        `json:"-"`
	CardHash        string        `json:"-"`
	Assignment      GeoAssignment `json:"assignment"`
	HasVoted        bool          `json:"has_voted"`
	VotedElectionID *uuid.UUID    `json:"voted_election_id,omitempty"`
	VotedAt         *time.Time    `json:"voted_at,omitempty"`
	VerifiedAt      *time.Time    `json:"verified_at,omitempty"`
}

// HasVotedIn reports whether the voter's has-voted flag is set for electionID.
func (v *Voter) HasVotedIn(electionID uuid.UUID) bool {
	return v.HasVoted && v.VotedElectionID != nil && *v.VotedElectionID == electionID
}

type VerificationResult struct {
	Assignment      GeoAssignment
	AlreadyVerified bool
}
