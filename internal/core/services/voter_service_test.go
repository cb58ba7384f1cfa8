package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/votewatch/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

func newVoterService(t *testing.T) (*memory.Store, ports.VoterService) {
	t.Helper()
	store := memory.NewStore()
	store.SetRegistryRecord(domain.RegistryRecord{
		CredentialHash: domain.HashCredential("90F5B1234567"),
		CardHash:       domain.HashCredential("CARD-001"),
		IsActive:       true,
		Assignment:     pu1,
	})
	store.SetRegistryRecord(domain.RegistryRecord{
		CredentialHash: domain.HashCredential("90F5B7654321"),
		CardHash:       domain.HashCredential("CARD-002"),
		IsActive:       false,
		Assignment:     pu1,
	})
	return store, services.NewVoterService(store, store.Voters(), nil)
}

func verifyInput(voterID, vin, card string) ports.VerifyInput {
	return ports.VerifyInput{
		VoterID:        voterID,
		CredentialHash: domain.HashCredential(vin),
		CardHash:       domain.HashCredential(card),
	}
}

func TestVerifyBindsAssignment(t *testing.T) {
	store, svc := newVoterService(t)

	result, err := svc.Verify(context.Background(), verifyInput("sub-1", " 90f5b1234567 ", "card-001"))
	require.NoError(t, err)
	assert.Equal(t, pu1, result.Assignment)
	assert.False(t, result.AlreadyVerified)

	voter, err := store.Voters().GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, voter.IsVerified)
	assert.Equal(t, pu1, voter.Assignment)
	assert.Equal(t, domain.HashCredential("90F5B1234567"), voter.CredentialHash)
	assert.False(t, voter.HasVoted)
}

func TestVerifyIsIdempotent(t *testing.T) {
	store, svc := newVoterService(t)

	first, err := svc.Verify(context.Background(), verifyInput("sub-1", "90F5B1234567", "CARD-001"))
	require.NoError(t, err)
	before, err := store.Voters().GetByID(context.Background(), "sub-1")
	require.NoError(t, err)

	second, err := svc.Verify(context.Background(), verifyInput("sub-1", "90F5B1234567", "CARD-001"))
	require.NoError(t, err)
	after, err := store.Voters().GetByID(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, first.Assignment, second.Assignment)
	assert.True(t, second.AlreadyVerified)
	assert.Equal(t, before, after)
}

func TestVerifyRejections(t *testing.T) {
	tests := []struct {
		name  string
		input ports.VerifyInput
		want  error
	}{
		{name: "unknown credential", input: verifyInput("sub-1", "00000000000", "CARD-001"), want: domain.ErrCredentialNotFound},
		{name: "card mismatch", input: verifyInput("sub-1", "90F5B1234567", "CARD-999"), want: domain.ErrCredentialMismatch},
		{name: "inactive registration", input: verifyInput("sub-1", "90F5B7654321", "CARD-002"), want: domain.ErrCredentialInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newVoterService(t)

			_, err := svc.Verify(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)

			_, err = store.Voters().GetByID(context.Background(), "sub-1")
			assert.ErrorIs(t, err, domain.ErrVoterNotFound)
		})
	}
}

func TestVerifyCredentialClaimedByAnotherVoter(t *testing.T) {
	_, svc := newVoterService(t)

	_, err := svc.Verify(context.Background(), verifyInput("sub-1", "90F5B1234567", "CARD-001"))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), verifyInput("sub-2", "90F5B1234567", "CARD-001"))
	assert.ErrorIs(t, err, domain.ErrCredentialClaimed)
}
