package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

func TestIncrementIsAtomicAndIdempotentPerBallotLevel(t *testing.T) {
	store := NewStore()
	key := domain.AggregateKey{
		Level:       domain.LevelNational,
		LocationID:  domain.NationalLocationID,
		ElectionID:  uuid.New(),
		CandidateID: uuid.New(),
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Increment(context.Background(), domain.TallyIncrement{BallotID: uuid.New(), Key: key, By: 1}))
		}()
	}
	wg.Wait()

	replayed := uuid.New()
	require.NoError(t, store.Increment(context.Background(), domain.TallyIncrement{BallotID: replayed, Key: key, By: 1}))
	require.NoError(t, store.Increment(context.Background(), domain.TallyIncrement{BallotID: replayed, Key: key, By: 1}))

	rows, err := store.Query(context.Background(), key.Level, key.LocationID, key.ElectionID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 201, rows[0].VoteCount)
	assert.False(t, rows[0].LastUpdatedAt.IsZero())
}

func TestWithinCastTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	store.SetVoter(domain.Voter{ID: "v1", IsVerified: true})
	electionID := uuid.New()
	ballot := &domain.Ballot{ID: uuid.New(), ElectionID: electionID, CandidateID: uuid.New(), CastAt: time.Now()}

	boom := errors.New("boom")
	err := store.Ballots().WithinCastTx(context.Background(), func(ctx context.Context, tx ports.CastTx) error {
		require.NoError(t, tx.InsertBallot(ctx, ballot))
		require.NoError(t, tx.MarkVoted(ctx, "v1", electionID, ballot.CastAt))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Ballots().GetByID(context.Background(), ballot.ID)
	assert.ErrorIs(t, err, domain.ErrBallotNotFound)
	voter, err := store.Voters().GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.False(t, voter.HasVoted)
}

func TestWithinCastTxGuardsBallotIDAndVotedFlag(t *testing.T) {
	store := NewStore()
	store.SetVoter(domain.Voter{ID: "v1", IsVerified: true})
	store.SetVoter(domain.Voter{ID: "v2", IsVerified: true})
	electionID := uuid.New()
	ballot := &domain.Ballot{ID: uuid.New(), ElectionID: electionID, CandidateID: uuid.New(), CastAt: time.Now()}

	commit := func(voterID string, b *domain.Ballot) error {
		return store.Ballots().WithinCastTx(context.Background(), func(ctx context.Context, tx ports.CastTx) error {
			if err := tx.InsertBallot(ctx, b); err != nil {
				return err
			}
			if err := tx.MarkVoted(ctx, voterID, electionID, b.CastAt); err != nil {
				return err
			}
			return tx.AppendAudit(ctx, domain.NewAuditRecord(voterID, b))
		})
	}

	require.NoError(t, commit("v1", ballot))
	assert.ErrorIs(t, commit("v2", ballot), domain.ErrBallotExists)

	again := &domain.Ballot{ID: uuid.New(), ElectionID: electionID, CandidateID: ballot.CandidateID, CastAt: time.Now()}
	assert.ErrorIs(t, commit("v1", again), domain.ErrAlreadyVoted)

	v2, err := store.Voters().GetByID(context.Background(), "v2")
	require.NoError(t, err)
	assert.False(t, v2.HasVoted)
	assert.Len(t, store.AuditRecords(electionID), 1)
}

func TestListUntalliedAndMarkTallied(t *testing.T) {
	store := NewStore()
	store.SetVoter(domain.Voter{ID: "v1", IsVerified: true})
	electionID := uuid.New()
	old := domain.Ballot{ID: uuid.New(), ElectionID: electionID, CastAt: time.Now().Add(-time.Minute)}
	fresh := domain.Ballot{ID: uuid.New(), ElectionID: electionID, CastAt: time.Now()}

	for _, b := range []domain.Ballot{fresh, old} {
		require.NoError(t, store.Ballots().WithinCastTx(context.Background(), func(ctx context.Context, tx ports.CastTx) error {
			return tx.InsertBallot(ctx, &b)
		}))
	}

	pending, err := store.Ballots().ListUntallied(context.Background(), time.Now().Add(-30*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, old.ID, pending[0].ID)

	require.NoError(t, store.Ballots().MarkTallied(context.Background(), old.ID, time.Now()))
	pending, err = store.Ballots().ListUntallied(context.Background(), time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)

	assert.ErrorIs(t, store.Ballots().MarkTallied(context.Background(), uuid.New(), time.Now()), domain.ErrBallotNotFound)
}

func TestQueryNeverSeesHalfBuiltCounter(t *testing.T) {
	store := NewStore()
	electionID := uuid.New()

	for i := 0; i < 50; i++ {
		key := domain.AggregateKey{
			Level:       domain.LevelWard,
			LocationID:  "W1",
			ElectionID:  electionID,
			CandidateID: uuid.New(),
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			assert.NoError(t, store.Increment(context.Background(), domain.TallyIncrement{Key: key, By: 1}))
		}()

		for seen := false; !seen; {
			rows, err := store.Query(context.Background(), domain.LevelWard, "W1", electionID)
			require.NoError(t, err)
			for _, row := range rows {
				if row.CandidateID != key.CandidateID {
					continue
				}
				seen = true
				assert.EqualValues(t, 1, row.VoteCount)
				assert.False(t, row.LastUpdatedAt.Before(time.Unix(1, 0)), "counter visible without a timestamp")
			}
		}
		<-done
	}
}
