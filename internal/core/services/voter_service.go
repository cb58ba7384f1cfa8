package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type voterService struct {
	verifier  ports.CredentialVerifier
	voterRepo ports.VoterRepository
	logger    *slog.Logger
}

func NewVoterService(verifier ports.CredentialVerifier, voterRepo ports.VoterRepository, logger *slog.Logger) ports.VoterService {
	return &voterService{
		verifier:  verifier,
		voterRepo: voterRepo,
		logger:    resolveLogger(logger),
	}
}

// Verify checks hashed credentials against the registry and binds the
// registry's geographic assignment to the voter. Only the first successful
// call mutates anything.
func (s *voterService) Verify(ctx context.Context, input ports.VerifyInput) (*domain.VerificationResult, error) {
	record, err := s.verifier.Lookup(ctx, input.CredentialHash)
	if err != nil {
		err = storeError(err, domain.ErrCredentialNotFound)
		s.logRejected(input.VoterID, err)
		return nil, err
	}
	if record.CardHash != input.CardHash {
		s.logRejected(input.VoterID, domain.ErrCredentialMismatch)
		return nil, domain.ErrCredentialMismatch
	}
	if !record.IsActive {
		s.logRejected(input.VoterID, domain.ErrCredentialInactive)
		return nil, domain.ErrCredentialInactive
	}

	existing, err := s.voterRepo.GetByID(ctx, input.VoterID)
	if err != nil && !errors.Is(err, domain.ErrVoterNotFound) {
		return nil, storeError(err)
	}
	if existing != nil && existing.IsVerified {
		return &domain.VerificationResult{Assignment: existing.Assignment, AlreadyVerified: true}, nil
	}

	now := time.Now().UTC()
	stored, err := s.voterRepo.SaveVerification(ctx, &domain.Voter{
		ID:             input.VoterID,
		IsVerified:     true,
		CredentialHash: input.CredentialHash,
		CardHash:       input.CardHash,
		Assignment:     record.Assignment,
		VerifiedAt:     &now,
	})
	if err != nil {
		err = storeError(err, domain.ErrCredentialClaimed)
		s.logRejected(input.VoterID, err)
		return nil, err
	}

	s.logger.Info("voter verified",
		"event", "voter_verified",
		"module", logModule,
		"layer", "application",
		"voter_id", input.VoterID,
		"state_id", stored.Assignment.StateID,
	)

	return &domain.VerificationResult{Assignment: stored.Assignment}, nil
}

func (s *voterService) logRejected(voterID string, err error) {
	s.logger.Info("voter verification rejected",
		"event", "voter_verification_rejected",
		"module", logModule,
		"layer", "application",
		"voter_id", voterID,
		"reason", err.Error(),
	)
}
