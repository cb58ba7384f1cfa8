package ports

import (
	"context"

	"github.com/vncsmyrnk/votewatch/internal/core/domain"
)

// CredentialVerifier looks up the external voter registry by hashed
// national credential.
type CredentialVerifier interface {
	Lookup(ctx context.Context, credentialHash string) (*domain.RegistryRecord, error)
}

type VoterRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Voter, error)
	// SaveVerification stores hashes and assignment and marks the voter
	// verified, creating the voter if needed. A voter that is already
	// verified is left untouched; the stored record is returned either way.
	SaveVerification(ctx context.Context, voter *domain.Voter) (*domain.Voter, error)
}

type VerifyInput struct {
	VoterID        string
	CredentialHash string
	CardHash       string
}

type VoterService interface {
	Verify(ctx context.Context, input VerifyInput) (*domain.VerificationResult, error)
}
