package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type auditKey struct {
	voterID    string
	electionID uuid.UUID
}

type ledgerKey struct {
	ballotID uuid.UUID
	level    domain.Level
}

type counter struct {
	count     atomic.Int64
	updatedAt atomic.Int64
}

// Store keeps every repository in process memory. It backs unit tests and
// the server's memory storage driver.
type Store struct {
	mu sync.RWMutex

	elections  map[uuid.UUID]domain.Election
	candidates map[uuid.UUID][]domain.Candidate
	registry   map[string]domain.RegistryRecord
	voters     map[string]domain.Voter
	ballots    map[uuid.UUID]domain.Ballot
	tallied    map[uuid.UUID]time.Time
	audit      map[auditKey]domain.AuditRecord

	counters sync.Map // domain.AggregateKey -> *counter
	ledger   sync.Map // ledgerKey -> struct{}
}

func NewStore() *Store {
	return &Store{
		elections:  make(map[uuid.UUID]domain.Election),
		candidates: make(map[uuid.UUID][]domain.Candidate),
		registry:   make(map[string]domain.RegistryRecord),
		voters:     make(map[string]domain.Voter),
		ballots:    make(map[uuid.UUID]domain.Ballot),
		tallied:    make(map[uuid.UUID]time.Time),
		audit:      make(map[auditKey]domain.AuditRecord),
	}
}

func (s *Store) SetElection(election domain.Election) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[election.ID] = election
}

func (s *Store) SetCandidate(candidate domain.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.candidates[candidate.ElectionID]
	list = slices.DeleteFunc(list, func(c domain.Candidate) bool { return c.ID == candidate.ID })
	s.candidates[candidate.ElectionID] = append(list, candidate)
}

func (s *Store) SetRegistryRecord(record domain.RegistryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[record.CredentialHash] = record
}

func (s *Store) SetVoter(voter domain.Voter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters[strings.TrimSpace(voter.ID)] = voter
}

// AuditRecords returns the audit log entries for an election.
func (s *Store) AuditRecords(electionID uuid.UUID) []domain.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.AuditRecord
	for key, record := range s.audit {
		if key.electionID == electionID {
			records = append(records, record)
		}
	}
	return records
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[id]
	if !ok {
		return nil, domain.ErrElectionNotFound
	}
	return &election, nil
}

func (s *Store) ListCandidates(_ context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.candidates[electionID]), nil
}

func (s *Store) Lookup(_ context.Context, credentialHash string) (*domain.RegistryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.registry[credentialHash]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return &record, nil
}

// Voters exposes the store as a ports.VoterRepository; its GetByID would
// otherwise clash with the election lookup.
func (s *Store) Voters() ports.VoterRepository {
	return voterView{s}
}

// Ballots exposes the store as a ports.BallotRepository.
func (s *Store) Ballots() ports.BallotRepository {
	return ballotView{s}
}

type voterView struct{ s *Store }

func (v voterView) GetByID(_ context.Context, id string) (*domain.Voter, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	voter, ok := v.s.voters[strings.TrimSpace(id)]
	if !ok {
		return nil, domain.ErrVoterNotFound
	}
	return &voter, nil
}

func (v voterView) SaveVerification(_ context.Context, voter *domain.Voter) (*domain.Voter, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	id := strings.TrimSpace(voter.ID)
	existing, ok := v.s.voters[id]
	if ok && existing.IsVerified {
		return &existing, nil
	}
	for otherID, other := range v.s.voters {
		if otherID != id && other.IsVerified && other.CredentialHash == voter.CredentialHash {
			return nil, domain.ErrCredentialClaimed
		}
	}

	existing.ID = id
	existing.IsVerified = true
	existing.CredentialHash = voter.CredentialHash
	existing.CardHash = voter.CardHash
	existing.Assignment = voter.Assignment
	existing.VerifiedAt = voter.VerifiedAt
	v.s.voters[id] = existing
	return &existing, nil
}

type ballotView struct{ s *Store }

type votedMark struct {
	voterID    string
	electionID uuid.UUID
	at         time.Time
}

// castTx stages writes; WithinCastTx validates and applies them together
// under the store lock.
type castTx struct {
	s       *Store
	ballots []domain.Ballot
	marks   []votedMark
	audits  []domain.AuditRecord
}

func (t *castTx) InsertBallot(_ context.Context, ballot *domain.Ballot) error {
	t.s.mu.RLock()
	_, exists := t.s.ballots[ballot.ID]
	t.s.mu.RUnlock()
	if exists {
		return domain.ErrBallotExists
	}
	t.ballots = append(t.ballots, *ballot)
	return nil
}

func (t *castTx) MarkVoted(_ context.Context, voterID string, electionID uuid.UUID, at time.Time) error {
	t.s.mu.RLock()
	voter, ok := t.s.voters[strings.TrimSpace(voterID)]
	t.s.mu.RUnlock()
	if !ok {
		return domain.ErrVoterNotFound
	}
	if voter.HasVoted {
		return domain.ErrAlreadyVoted
	}
	t.marks = append(t.marks, votedMark{voterID: strings.TrimSpace(voterID), electionID: electionID, at: at})
	return nil
}

func (t *castTx) AppendAudit(_ context.Context, record *domain.AuditRecord) error {
	t.audits = append(t.audits, *record)
	return nil
}

func (b ballotView) WithinCastTx(ctx context.Context, fn func(ctx context.Context, tx ports.CastTx) error) error {
	tx := &castTx{s: b.s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check every condition now that the lock is held: another cast may
	// have committed since the staged checks ran.
	for _, ballot := range tx.ballots {
		if _, exists := s.ballots[ballot.ID]; exists {
			return domain.ErrBallotExists
		}
	}
	for _, mark := range tx.marks {
		voter, ok := s.voters[mark.voterID]
		if !ok {
			return domain.ErrVoterNotFound
		}
		if voter.HasVoted {
			return domain.ErrAlreadyVoted
		}
	}
	for _, record := range tx.audits {
		if _, exists := s.audit[auditKey{record.VoterID, record.ElectionID}]; exists {
			return domain.ErrAlreadyVoted
		}
	}

	for _, ballot := range tx.ballots {
		s.ballots[ballot.ID] = ballot
	}
	for _, mark := range tx.marks {
		voter := s.voters[mark.voterID]
		electionID, at := mark.electionID, mark.at
		voter.HasVoted = true
		voter.VotedElectionID = &electionID
		voter.VotedAt = &at
		s.voters[mark.voterID] = voter
	}
	for _, record := range tx.audits {
		s.audit[auditKey{record.VoterID, record.ElectionID}] = record
	}
	return nil
}

func (b ballotView) GetByID(_ context.Context, id uuid.UUID) (*domain.Ballot, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	ballot, ok := b.s.ballots[id]
	if !ok {
		return nil, domain.ErrBallotNotFound
	}
	return &ballot, nil
}

func (b ballotView) ListUntallied(_ context.Context, castBefore time.Time, limit int) ([]domain.Ballot, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	var pending []domain.Ballot
	for id, ballot := range b.s.ballots {
		if _, done := b.s.tallied[id]; done || !ballot.CastAt.Before(castBefore) {
			continue
		}
		pending = append(pending, ballot)
	}
	slices.SortFunc(pending, func(x, y domain.Ballot) int { return x.CastAt.Compare(y.CastAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (b ballotView) MarkTallied(_ context.Context, id uuid.UUID, at time.Time) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.ballots[id]; !ok {
		return domain.ErrBallotNotFound
	}
	if _, done := b.s.tallied[id]; !done {
		b.s.tallied[id] = at
	}
	return nil
}

func (b ballotView) CountByCandidate(_ context.Context, electionID uuid.UUID) (map[uuid.UUID]int64, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	counts := make(map[uuid.UUID]int64)
	for _, ballot := range b.s.ballots {
		if ballot.ElectionID == electionID {
			counts[ballot.CandidateID]++
		}
	}
	return counts, nil
}

func (s *Store) Increment(_ context.Context, inc domain.TallyIncrement) error {
	if inc.BallotID != uuid.Nil {
		if _, applied := s.ledger.LoadOrStore(ledgerKey{inc.BallotID, inc.Key.Level}, struct{}{}); applied {
			return nil
		}
	}
	now := time.Now().UTC().UnixNano()

	// A new row is published already holding its first count.
	fresh := &counter{}
	fresh.count.Store(inc.By)
	fresh.updatedAt.Store(now)

	value, loaded := s.counters.LoadOrStore(inc.Key, fresh)
	if loaded {
		c := value.(*counter)
		c.count.Add(inc.By)
		c.updatedAt.Store(now)
	}
	return nil
}

func (s *Store) Query(_ context.Context, level domain.Level, locationID string, electionID uuid.UUID) ([]domain.AggregateCounter, error) {
	var rows []domain.AggregateCounter
	s.counters.Range(func(k, v any) bool {
		key := k.(domain.AggregateKey)
		if key.Level != level || key.LocationID != locationID || key.ElectionID != electionID {
			return true
		}
		c := v.(*counter)
		rows = append(rows, domain.AggregateCounter{
			AggregateKey:  key,
			VoteCount:     c.count.Load(),
			LastUpdatedAt: time.Unix(0, c.updatedAt.Load()).UTC(),
		})
		return true
	})
	return rows, nil
}

var _ ports.ElectionRepository = (*Store)(nil)
var _ ports.CredentialVerifier = (*Store)(nil)
var _ ports.AggregateRepository = (*Store)(nil)
var _ ports.VoterRepository = voterView{}
var _ ports.BallotRepository = ballotView{}
