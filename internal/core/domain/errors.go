package domain

import (
	"errors"
	"fmt"
)

var (
	ErrElectionNotFound   = errors.New("election not found")
	ErrElectionNotOpen    = errors.New("election is not open")
	ErrCandidateNotFound  = errors.New("candidate not found in this election")
	ErrVoterNotFound      = errors.New("voter not found")
	ErrVoterNotVerified   = errors.New("voter is not verified")
	ErrAlreadyVoted       = errors.New("voter has already voted")
	ErrBallotExists       = errors.New("ballot id already exists")
	ErrBallotNotFound     = errors.New("ballot not found")
	ErrCredentialNotFound = errors.New("credential not found in registry")
	ErrCredentialMismatch = errors.New("card does not match credential")
	ErrCredentialInactive = errors.New("credential registration is inactive")
	ErrCredentialClaimed  = errors.New("credential is linked to another voter")
	ErrInvalidLevel       = errors.New("invalid geographic level")
	ErrLocationRequired   = errors.New("location id is required for this level")
	ErrTransientStore     = errors.New("storage temporarily unavailable")

	// ErrVotedElsewhere is the has-voted flag set by a different election.
	// It matches ErrAlreadyVoted.
	ErrVotedElsewhere = fmt.Errorf("%w in another election", ErrAlreadyVoted)
)

// ElectionNotOpenError carries the status that blocked the cast.
// errors.Is(err, ErrElectionNotOpen) holds for it.
type ElectionNotOpenError struct {
	Status ElectionStatus
}

func (e *ElectionNotOpenError) Error() string {
	return fmt.Sprintf("election is %s", e.Status)
}

func (e *ElectionNotOpenError) Is(target error) bool {
	return target == ErrElectionNotOpen
}

// UserMessage returns the voter-facing text for err. Unknown errors map to
// a generic message so storage details never leak.
func UserMessage(err error) string {
	var notOpen *ElectionNotOpenError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notOpen):
		return fmt.Sprintf("This election is currently %s. Voting is not allowed.", notOpen.Status)
	case errors.Is(err, ErrElectionNotOpen):
		return "This election is not open. Voting is not allowed."
	case errors.Is(err, ErrElectionNotFound):
		return "Election not found."
	case errors.Is(err, ErrCandidateNotFound):
		return "The selected candidate is not standing in this election."
	case errors.Is(err, ErrVoterNotFound):
		return "Voter not found. Please complete registration."
	case errors.Is(err, ErrVoterNotVerified):
		return "Your voter ID has not been verified. Please verify your VIN first."
	case errors.Is(err, ErrVotedElsewhere):
		return "You have already voted in another election. Each voter can only vote once."
	case errors.Is(err, ErrAlreadyVoted):
		return "You have already voted in this election. Each voter can only vote once."
	case errors.Is(err, ErrCredentialNotFound):
		return "VIN not found in the voter registry. Please check your voter card and try again."
	case errors.Is(err, ErrCredentialMismatch):
		return "Voter card number does not match this VIN. Please check your details and try again."
	case errors.Is(err, ErrCredentialInactive):
		return "This voter registration is not active. Please contact INEC."
	case errors.Is(err, ErrCredentialClaimed):
		return "This VIN is already linked to another account."
	case errors.Is(err, ErrInvalidLevel):
		return "Unknown result level."
	case errors.Is(err, ErrLocationRequired):
		return "A location is required for this result level."
	case errors.Is(err, ErrTransientStore):
		return "The service is temporarily unavailable. Please check your voting status before trying again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
