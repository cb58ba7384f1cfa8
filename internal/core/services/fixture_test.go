package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

var pu1 = domain.GeoAssignment{PollingUnitID: "PU1", WardID: "W1", LGAID: "L1", StateID: "S1"}

type fixture struct {
	store      *memory.Store
	election   domain.Election
	candidateA domain.Candidate
	candidateB domain.Candidate
	reconciler ports.ReconciliationService
	votes      ports.VoteService
	results    ports.ResultService
}

// newFixture seeds an OPEN election with candidates A and B. aggregates,
// when non-nil, replaces the store as the casting path's counter store.
func newFixture(t *testing.T, aggregates ports.AggregateRepository) *fixture {
	t.Helper()

	store := memory.NewStore()
	election := domain.Election{ID: uuid.New(), Name: "Presidential 2027", Status: domain.ElectionOpen}
	store.SetElection(election)

	a := domain.Candidate{ID: uuid.New(), ElectionID: election.ID, Name: "Candidate A", Party: "APC"}
	b := domain.Candidate{ID: uuid.New(), ElectionID: election.ID, Name: "Candidate B", Party: "PDP"}
	store.SetCandidate(a)
	store.SetCandidate(b)

	if aggregates == nil {
		aggregates = store
	}

	reconciler := services.NewReconciliationService(store.Ballots(), store, services.ReconcilerOptions{
		Grace:          time.Nanosecond,
		InitialBackoff: time.Millisecond,
	}, nil)

	return &fixture{
		store:      store,
		election:   election,
		candidateA: a,
		candidateB: b,
		reconciler: reconciler,
		votes:      services.NewVoteService(store, store.Voters(), store.Ballots(), aggregates, reconciler, nil),
		results:    services.NewResultService(store, store),
	}
}

func (f *fixture) verifiedVoter(id string, assignment domain.GeoAssignment) {
	now := time.Now().UTC()
	f.store.SetVoter(domain.Voter{
		ID:             id,
		IsVerified:     true,
		CredentialHash: domain.HashCredential("VIN-" + id),
		CardHash:       domain.HashCredential("CARD-" + id),
		Assignment:     assignment,
		VerifiedAt:     &now,
	})
}

func (f *fixture) cast(voterID string, candidate domain.Candidate) (*domain.CastResult, error) {
	return f.votes.CastVote(context.Background(), ports.VoteInput{
		VoterID:     voterID,
		ElectionID:  f.election.ID,
		CandidateID: candidate.ID,
	})
}

func (f *fixture) national(t *testing.T) map[uuid.UUID]int64 {
	t.Helper()
	counters, err := f.store.Query(context.Background(), domain.LevelNational, domain.NationalLocationID, f.election.ID)
	if err != nil {
		t.Fatalf("query national counters: %v", err)
	}
	out := make(map[uuid.UUID]int64)
	for _, c := range counters {
		out[c.CandidateID] = c.VoteCount
	}
	return out
}

// failingAggregates fails every increment at one level until healed.
type failingAggregates struct {
	ports.AggregateRepository
	level    domain.Level
	healed   atomic.Bool
	failures atomic.Int32
}

func (a *failingAggregates) Increment(ctx context.Context, inc domain.TallyIncrement) error {
	if !a.healed.Load() && inc.Key.Level == a.level {
		a.failures.Add(1)
		return errors.New("connection reset by peer")
	}
	return a.AggregateRepository.Increment(ctx, inc)
}

// brokenElections fails every lookup with a storage error.
type brokenElections struct{}

func (brokenElections) GetByID(context.Context, uuid.UUID) (*domain.Election, error) {
	return nil, fmt.Errorf("dial tcp 10.0.0.4:5432: connection refused")
}

func (brokenElections) ListCandidates(context.Context, uuid.UUID) ([]domain.Candidate, error) {
	return nil, fmt.Errorf("dial tcp 10.0.0.4:5432: connection refused")
}

func castInput(f *fixture, voterID string) ports.VoteInput {
	return ports.VoteInput{VoterID: voterID, ElectionID: f.election.ID, CandidateID: f.candidateA.ID}
}

type discardQueue struct{}

func (discardQueue) Enqueue(uuid.UUID) {}
