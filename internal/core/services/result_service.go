package services

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type resultService struct {
	electionRepo  ports.ElectionRepository
	aggregateRepo ports.AggregateRepository
}

func NewResultService(electionRepo ports.ElectionRepository, aggregateRepo ports.AggregateRepository) ports.ResultService {
	return &resultService{
		electionRepo:  electionRepo,
		aggregateRepo: aggregateRepo,
	}
}

// GetResults ranks every candidate of the election by votes at the given
// level and location. Candidates with no counter yet are listed with zero.
func (s *resultService) GetResults(ctx context.Context, input ports.ResultsInput) (*domain.ResultSet, error) {
	if _, err := domain.ParseLevel(string(input.Level)); err != nil {
		return nil, err
	}
	locationID := strings.TrimSpace(input.LocationID)
	if input.Level == domain.LevelNational {
		locationID = domain.NationalLocationID
	} else if locationID == "" {
		return nil, domain.ErrLocationRequired
	}

	election, err := s.electionRepo.GetByID(ctx, input.ElectionID)
	if err != nil {
		return nil, storeError(err, domain.ErrElectionNotFound)
	}

	candidates, err := s.electionRepo.ListCandidates(ctx, input.ElectionID)
	if err != nil {
		return nil, storeError(err)
	}

	counters, err := s.aggregateRepo.Query(ctx, input.Level, locationID, input.ElectionID)
	if err != nil {
		return nil, storeError(err)
	}

	results := make(map[uuid.UUID]*domain.CandidateResult, len(candidates))
	for _, c := range candidates {
		results[c.ID] = &domain.CandidateResult{CandidateID: c.ID, Name: c.Name, Party: c.Party}
	}

	var total int64
	for _, counter := range counters {
		r, ok := results[counter.CandidateID]
		if !ok {
			r = &domain.CandidateResult{CandidateID: counter.CandidateID}
			results[counter.CandidateID] = r
		}
		updatedAt := counter.LastUpdatedAt
		r.VoteCount += counter.VoteCount
		r.LastUpdatedAt = &updatedAt
		total += counter.VoteCount
	}

	ranked := make([]domain.CandidateResult, 0, len(results))
	for _, r := range results {
		r.Percentage = domain.NewPercentage(r.VoteCount, total)
		ranked = append(ranked, *r)
	}
	slices.SortFunc(ranked, func(a, b domain.CandidateResult) int {
		if c := cmp.Compare(b.VoteCount, a.VoteCount); c != 0 {
			return c
		}
		return strings.Compare(a.CandidateID.String(), b.CandidateID.String())
	})

	return &domain.ResultSet{
		ElectionID:   election.ID,
		ElectionName: election.Name,
		Status:       election.Status,
		Level:        input.Level,
		LocationID:   locationID,
		TotalVotes:   total,
		Candidates:   ranked,
	}, nil
}
