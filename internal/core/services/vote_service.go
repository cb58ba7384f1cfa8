package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

const defaultTallyTimeout = 10 * time.Second

type voteService struct {
	electionRepo  ports.ElectionRepository
	voterRepo     ports.VoterRepository
	ballotRepo    ports.BallotRepository
	aggregateRepo ports.AggregateRepository
	queue         ports.TallyQueue
	tallyTimeout  time.Duration
	logger        *slog.Logger
}

func NewVoteService(
	electionRepo ports.ElectionRepository,
	voterRepo ports.VoterRepository,
	ballotRepo ports.BallotRepository,
	aggregateRepo ports.AggregateRepository,
	queue ports.TallyQueue,
	logger *slog.Logger,
) ports.VoteService {
	return &voteService{
		electionRepo:  electionRepo,
		voterRepo:     voterRepo,
		ballotRepo:    ballotRepo,
		aggregateRepo: aggregateRepo,
		queue:         queue,
		tallyTimeout:  defaultTallyTimeout,
		logger:        resolveLogger(logger),
	}
}

// CastVote runs eligibility check, ballot commit and tally propagation.
// Once the commit succeeds the cast is reported as successful even if some
// counters could not be updated; those are left to reconciliation.
func (s *voteService) CastVote(ctx context.Context, input ports.VoteInput) (*domain.CastResult, error) {
	voter, err := s.checkEligibility(ctx, input)
	if err != nil {
		s.logger.Info("vote rejected",
			"event", "vote_cast_rejected",
			"module", logModule,
			"layer", "application",
			"voter_id", input.VoterID,
			"election_id", input.ElectionID,
			"reason", err.Error(),
		)
		return nil, err
	}

	ballot := &domain.Ballot{
		ID:          uuid.New(),
		ElectionID:  input.ElectionID,
		CandidateID: input.CandidateID,
		Assignment:  voter.Assignment,
		CastAt:      time.Now().UTC(),
	}

	if err := s.commit(ctx, voter.ID, ballot); err != nil {
		return nil, err
	}

	s.logger.Info("vote recorded",
		"event", "vote_cast_committed",
		"module", logModule,
		"layer", "application",
		"ballot_id", ballot.ID,
		"election_id", ballot.ElectionID,
	)

	s.propagate(ctx, ballot)

	return &domain.CastResult{BallotID: ballot.ID, CastAt: ballot.CastAt}, nil
}

func (s *voteService) VotingStatus(ctx context.Context, voterID string, electionID uuid.UUID) (*ports.VotingStatus, error) {
	voter, err := s.voterRepo.GetByID(ctx, voterID)
	if err != nil {
		return nil, storeError(err, domain.ErrVoterNotFound)
	}

	status := &ports.VotingStatus{
		ElectionID: electionID,
		IsVerified: voter.IsVerified,
		HasVoted:   voter.HasVoted,
	}
	if status.HasVoted {
		status.VotedElectionID = voter.VotedElectionID
		status.VotedAt = voter.VotedAt
	}
	return status, nil
}

func (s *voteService) checkEligibility(ctx context.Context, input ports.VoteInput) (*domain.Voter, error) {
	election, err := s.electionRepo.GetByID(ctx, input.ElectionID)
	if err != nil {
		return nil, storeError(err, domain.ErrElectionNotFound)
	}
	if !election.AcceptsBallots() {
		return nil, &domain.ElectionNotOpenError{Status: election.Status}
	}

	candidates, err := s.electionRepo.ListCandidates(ctx, input.ElectionID)
	if err != nil {
		return nil, storeError(err)
	}
	validCandidate := false
	for _, c := range candidates {
		if c.ID == input.CandidateID {
			validCandidate = true
			break
		}
	}
	if !validCandidate {
		return nil, domain.ErrCandidateNotFound
	}

	voter, err := s.voterRepo.GetByID(ctx, input.VoterID)
	if err != nil {
		return nil, storeError(err, domain.ErrVoterNotFound)
	}
	if !voter.IsVerified {
		return nil, domain.ErrVoterNotVerified
	}
	// Short-circuit only; the commit below is authoritative.
	if voter.HasVotedIn(input.ElectionID) {
		return nil, domain.ErrAlreadyVoted
	}
	if voter.HasVoted {
		return nil, domain.ErrVotedElsewhere
	}

	return voter, nil
}

func (s *voteService) commit(ctx context.Context, voterID string, ballot *domain.Ballot) error {
	err := s.ballotRepo.WithinCastTx(ctx, func(ctx context.Context, tx ports.CastTx) error {
		if err := tx.InsertBallot(ctx, ballot); err != nil {
			return err
		}
		if err := tx.MarkVoted(ctx, voterID, ballot.ElectionID, ballot.CastAt); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, domain.NewAuditRecord(voterID, ballot))
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrAlreadyVoted) || errors.Is(err, domain.ErrBallotExists) {
		s.logger.Warn("double vote attempt blocked",
			"event", "vote_cast_conflict",
			"module", logModule,
			"layer", "application",
			"voter_id", voterID,
			"election_id", ballot.ElectionID,
		)
		return domain.ErrAlreadyVoted
	}

	s.logger.Error("ballot commit failed",
		"event", "vote_cast_commit_failed",
		"module", logModule,
		"layer", "application",
		"voter_id", voterID,
		"election_id", ballot.ElectionID,
		"error", err.Error(),
	)
	return storeError(err)
}

// propagate applies the five level increments concurrently. It runs on a
// context detached from the caller so a client hanging up after the
// commit does not abandon the tally.
func (s *voteService) propagate(ctx context.Context, ballot *domain.Ballot) {
	tallyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tallyTimeout)
	defer cancel()

	var g errgroup.Group
	for _, inc := range domain.TallyIncrements(ballot) {
		g.Go(func() error {
			if err := s.aggregateRepo.Increment(tallyCtx, inc); err != nil {
				s.logger.Error("tally increment failed",
					"event", "vote_tally_increment_failed",
					"module", logModule,
					"layer", "application",
					"ballot_id", ballot.ID,
					"level", inc.Key.Level,
					"location_id", inc.Key.LocationID,
					"error", err.Error(),
				)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.queue.Enqueue(ballot.ID)
		return
	}

	if err := s.ballotRepo.MarkTallied(tallyCtx, ballot.ID, time.Now().UTC()); err != nil {
		// The sweep replays it; every increment is already applied so the
		// replay only sets the marker.
		s.logger.Warn("mark tallied failed",
			"event", "vote_tally_mark_failed",
			"module", logModule,
			"layer", "application",
			"ballot_id", ballot.ID,
			"error", err.Error(),
		)
	}
}

// storeError passes expected domain errors through and tags everything
// else as a transient storage failure.
func storeError(err error, expected ...error) error {
	for _, e := range expected {
		if errors.Is(err, e) {
			return e
		}
	}
	if errors.Is(err, domain.ErrTransientStore) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
}
