package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type ReconcilerOptions struct {
	// Grace keeps the sweep away from ballots whose propagation may still
	// be in flight.
	Grace          time.Duration
	BatchSize      int
	QueueSize      int
	MaxRetries     uint64
	InitialBackoff time.Duration
}

const defaultReconcileInterval = 15 * time.Second

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.Grace <= 0 {
		o.Grace = 30 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 100 * time.Millisecond
	}
	return o
}

type reconciliationService struct {
	ballotRepo    ports.BallotRepository
	aggregateRepo ports.AggregateRepository
	queue         chan uuid.UUID
	opts          ReconcilerOptions
	logger        *slog.Logger
}

// NewReconciliationService replays tally propagation for committed ballots
// whose counters were not confirmed. Replays are safe because the
// aggregate store applies each (ballot, level) increment at most once.
func NewReconciliationService(
	ballotRepo ports.BallotRepository,
	aggregateRepo ports.AggregateRepository,
	opts ReconcilerOptions,
	logger *slog.Logger,
) ports.ReconciliationService {
	opts = opts.withDefaults()
	return &reconciliationService{
		ballotRepo:    ballotRepo,
		aggregateRepo: aggregateRepo,
		queue:         make(chan uuid.UUID, opts.QueueSize),
		opts:          opts,
		logger:        resolveLogger(logger),
	}
}

// Enqueue never blocks. A ballot dropped on a full queue is still found by
// the untallied sweep.
func (s *reconciliationService) Enqueue(ballotID uuid.UUID) {
	select {
	case s.queue <- ballotID:
		s.logger.Info("ballot queued for reconciliation",
			"event", "tally_reconcile_enqueued",
			"module", logModule,
			"layer", "worker",
			"ballot_id", ballotID,
		)
	default:
		s.logger.Warn("reconciliation queue full",
			"event", "tally_reconcile_queue_full",
			"module", logModule,
			"layer", "worker",
			"ballot_id", ballotID,
		)
	}
}

// RunOnce reconciles queued ballots and one batch of untallied ones. It
// returns how many ballots were brought fully up to date.
func (s *reconciliationService) RunOnce(ctx context.Context) (int, error) {
	ballots, err := s.pending(ctx)
	if err != nil {
		s.logger.Error("reconciliation listing failed",
			"event", "tally_reconcile_list_failed",
			"module", logModule,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(ballots) == 0 {
		s.logger.Debug("reconciliation found nothing to replay",
			"event", "tally_reconcile_noop",
			"module", logModule,
			"layer", "worker",
		)
		return 0, nil
	}

	var errs []error
	reconciled := 0
	for i := range ballots {
		if err := s.replay(ctx, &ballots[i]); err != nil {
			s.logger.Error("ballot reconciliation failed",
				"event", "tally_reconcile_ballot_failed",
				"module", logModule,
				"layer", "worker",
				"ballot_id", ballots[i].ID,
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("ballot %s: %w", ballots[i].ID, err))
			continue
		}
		reconciled++
	}

	s.logger.Info("reconciliation cycle completed",
		"event", "tally_reconcile_completed",
		"module", logModule,
		"layer", "worker",
		"pending_count", len(ballots),
		"reconciled_count", reconciled,
	)
	return reconciled, errors.Join(errs...)
}

// Run reconciles every interval until ctx is done. A non-positive
// interval falls back to the default.
func (s *reconciliationService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged inside RunOnce and retried next tick.
			_, _ = s.RunOnce(ctx)
		}
	}
}

// CheckTallies compares every candidate's NATIONAL counter with the count
// of committed ballots. An empty result means the tallies have settled.
func (s *reconciliationService) CheckTallies(ctx context.Context, electionID uuid.UUID) ([]ports.TallyDrift, error) {
	ballots, err := s.ballotRepo.CountByCandidate(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}
	counters, err := s.aggregateRepo.Query(ctx, domain.LevelNational, domain.NationalLocationID, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query national counters: %w", err)
	}

	national := make(map[uuid.UUID]int64, len(counters))
	for _, c := range counters {
		national[c.CandidateID] += c.VoteCount
	}

	var drift []ports.TallyDrift
	for candidateID, count := range ballots {
		if national[candidateID] != count {
			drift = append(drift, ports.TallyDrift{CandidateID: candidateID, Ballots: count, National: national[candidateID]})
		}
	}
	for candidateID, count := range national {
		if _, ok := ballots[candidateID]; !ok && count != 0 {
			drift = append(drift, ports.TallyDrift{CandidateID: candidateID, National: count})
		}
	}
	slices.SortFunc(drift, func(a, b ports.TallyDrift) int {
		return cmp.Compare(a.CandidateID.String(), b.CandidateID.String())
	})

	if len(drift) > 0 {
		s.logger.Warn("tally drift detected",
			"event", "tally_drift_detected",
			"module", logModule,
			"layer", "worker",
			"election_id", electionID,
			"candidate_count", len(drift),
		)
	}
	return drift, nil
}

func (s *reconciliationService) pending(ctx context.Context) ([]domain.Ballot, error) {
	seen := make(map[uuid.UUID]bool)
	var ballots []domain.Ballot

drain:
	for len(ballots) < s.opts.BatchSize {
		select {
		case id := <-s.queue:
			if seen[id] {
				continue
			}
			ballot, err := s.ballotRepo.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrBallotNotFound) {
					continue
				}
				// Put back everything drained this cycle so the next one
				// retries it without waiting out the sweep's grace period.
				for _, b := range ballots {
					s.Enqueue(b.ID)
				}
				s.Enqueue(id)
				return nil, err
			}
			seen[id] = true
			ballots = append(ballots, *ballot)
		default:
			break drain
		}
	}

	untallied, err := s.ballotRepo.ListUntallied(ctx, time.Now().UTC().Add(-s.opts.Grace), s.opts.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, b := range untallied {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		ballots = append(ballots, b)
	}
	return ballots, nil
}

func (s *reconciliationService) replay(ctx context.Context, ballot *domain.Ballot) error {
	for _, inc := range domain.TallyIncrements(ballot) {
		op := func() error {
			return s.aggregateRepo.Increment(ctx, inc)
		}
		if err := backoff.Retry(op, s.backOff(ctx)); err != nil {
			return fmt.Errorf("%s increment: %w", inc.Key.Level, err)
		}
	}
	return s.ballotRepo.MarkTallied(ctx, ballot.ID, time.Now().UTC())
}

func (s *reconciliationService) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	return backoff.WithContext(backoff.WithMaxRetries(b, s.opts.MaxRetries), ctx)
}
