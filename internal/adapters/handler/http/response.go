package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/votewatch/internal/core/domain"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognized
// is a server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrElectionNotFound),
		errors.Is(err, domain.ErrCandidateNotFound),
		errors.Is(err, domain.ErrVoterNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVoterNotVerified):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrElectionNotOpen),
		errors.Is(err, domain.ErrCredentialClaimed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrCredentialMismatch),
		errors.Is(err, domain.ErrCredentialInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidLevel),
		errors.Is(err, domain.ErrLocationRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
