package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
}

func NewVoteHandler(service ports.VoteService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type voteRequest struct {
	CandidateID uuid.UUID `json:"candidate_id"`
}

type voteResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	BallotID  *uuid.UUID `json:"ballot_id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	electionID, err := uuid.Parse(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid election id.")
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CandidateID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "A valid candidate_id is required.")
		return
	}

	voterID, ok := voterIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	input := ports.VoteInput{
		VoterID:     voterID,
		ElectionID:  electionID,
		CandidateID: req.CandidateID,
	}

	result, err := h.service.CastVote(r.Context(), input)
	if err != nil {
		writeJSON(w, statusFor(err), voteResponse{Message: domain.UserMessage(err)})
		return
	}

	writeJSON(w, http.StatusCreated, voteResponse{
		Success:   true,
		Message:   "Vote cast successfully.",
		BallotID:  &result.BallotID,
		Timestamp: &result.CastAt,
	})
}
