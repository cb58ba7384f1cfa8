package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

func TestRunOnceWithNothingPending(t *testing.T) {
	f := newFixture(t, nil)

	reconciled, err := f.reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reconciled)
}

func TestRunOnceSweepsUntalliedBallots(t *testing.T) {
	// Every increment fails and nothing is queued: only the sweep can
	// find the ballots.
	aggregates := &failingAggregates{level: domain.LevelNational}
	f := newFixture(t, aggregates)
	aggregates.AggregateRepository = f.store
	quiet := services.NewVoteService(f.store, f.store.Voters(), f.store.Ballots(), aggregates, discardQueue{}, nil)

	for _, id := range []string{"v1", "v2", "v3"} {
		f.verifiedVoter(id, pu1)
		_, err := quiet.CastVote(context.Background(), castInput(f, id))
		require.NoError(t, err)
	}

	drift, err := f.reconciler.CheckTallies(context.Background(), f.election.ID)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, f.candidateA.ID, drift[0].CandidateID)
	assert.EqualValues(t, 3, drift[0].Ballots)
	assert.EqualValues(t, 0, drift[0].National)

	time.Sleep(time.Millisecond)
	reconciled, err := f.reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, reconciled)
	assert.EqualValues(t, 3, f.national(t)[f.candidateA.ID])

	drift, err = f.reconciler.CheckTallies(context.Background(), f.election.ID)
	require.NoError(t, err)
	assert.Empty(t, drift)

	reconciled, err = f.reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reconciled)
}

func TestEnqueueUnknownBallotIsSkipped(t *testing.T) {
	f := newFixture(t, nil)

	f.reconciler.Enqueue(uuid.New())
	reconciled, err := f.reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reconciled)
}

// flakyBallots fails GetByID for one ballot id until healed.
type flakyBallots struct {
	ports.BallotRepository
	failID uuid.UUID
	healed atomic.Bool
}

func (b *flakyBallots) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ballot, error) {
	if !b.healed.Load() && id == b.failID {
		return nil, errors.New("connection reset by peer")
	}
	return b.BallotRepository.GetByID(ctx, id)
}

func TestRunOnceKeepsDrainedBallotsQueuedOnLookupFailure(t *testing.T) {
	aggregates := &failingAggregates{level: domain.LevelNational}
	f := newFixture(t, aggregates)
	aggregates.AggregateRepository = f.store
	quiet := services.NewVoteService(f.store, f.store.Voters(), f.store.Ballots(), aggregates, discardQueue{}, nil)

	f.verifiedVoter("v1", pu1)
	cast, err := quiet.CastVote(context.Background(), castInput(f, "v1"))
	require.NoError(t, err)

	// A long grace keeps the sweep out of it: only the queue can carry
	// the ballot.
	ballots := &flakyBallots{BallotRepository: f.store.Ballots(), failID: uuid.New()}
	reconciler := services.NewReconciliationService(ballots, f.store, services.ReconcilerOptions{
		Grace:          time.Hour,
		InitialBackoff: time.Millisecond,
	}, nil)

	reconciler.Enqueue(cast.BallotID)
	reconciler.Enqueue(ballots.failID)

	_, err = reconciler.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.national(t)[f.candidateA.ID])

	ballots.healed.Store(true)
	reconciled, err := reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)
	assert.EqualValues(t, 1, f.national(t)[f.candidateA.ID])
}

func TestEnqueueNeverBlocksWhenFull(t *testing.T) {
	f := newFixture(t, nil)
	small := services.NewReconciliationService(f.store.Ballots(), f.store, services.ReconcilerOptions{QueueSize: 1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			small.Enqueue(uuid.New())
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestRunWithZeroIntervalUsesDefault(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.reconciler.Run(ctx, 0)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.reconciler.Run(ctx, time.Millisecond)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
