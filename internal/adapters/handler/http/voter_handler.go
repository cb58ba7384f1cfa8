package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type VoterHandler struct {
	voterService ports.VoterService
	voteService  ports.VoteService
}

func NewVoterHandler(voterService ports.VoterService, voteService ports.VoteService) *VoterHandler {
	return &VoterHandler{
		voterService: voterService,
		voteService:  voteService,
	}
}

type verifyRequest struct {
	VIN             string `json:"vin"`
	VoterCardNumber string `json:"voter_card_number"`
}

type verifyResponse struct {
	IsValid    bool                  `json:"is_valid"`
	Message    string                `json:"message"`
	Assignment *domain.GeoAssignment `json:"assignment,omitempty"`
}

// Verify hashes the submitted credentials before anything else touches
// them; the plaintext is never logged or stored.
func (h *VoterHandler) Verify(w http.ResponseWriter, r *http.Request) {
	voterID, ok := voterIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Message: "Invalid request body."})
		return
	}
	if strings.TrimSpace(req.VIN) == "" || strings.TrimSpace(req.VoterCardNumber) == "" {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Message: "VIN and voter card number are required."})
		return
	}

	input := ports.VerifyInput{
		VoterID:        voterID,
		CredentialHash: domain.HashCredential(req.VIN),
		CardHash:       domain.HashCredential(req.VoterCardNumber),
	}

	result, err := h.voterService.Verify(r.Context(), input)
	if err != nil {
		writeJSON(w, statusFor(err), verifyResponse{Message: domain.UserMessage(err)})
		return
	}

	message := "Voter verified successfully."
	if result.AlreadyVerified {
		message = "Voter already verified."
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		IsValid:    true,
		Message:    message,
		Assignment: &result.Assignment,
	})
}

// Status lets a client re-check has-voted state before retrying a cast
// whose outcome it never saw.
func (h *VoterHandler) Status(w http.ResponseWriter, r *http.Request) {
	voterID, ok := voterIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	electionID, err := uuid.Parse(r.URL.Query().Get("election_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "A valid election_id is required.")
		return
	}

	status, err := h.voteService.VotingStatus(r.Context(), voterID, electionID)
	if err != nil {
		writeError(w, statusFor(err), domain.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
