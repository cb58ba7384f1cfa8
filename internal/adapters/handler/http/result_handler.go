package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type ResultHandler struct {
	service ports.ResultService
}

func NewResultHandler(service ports.ResultService) *ResultHandler {
	return &ResultHandler{
		service: service,
	}
}

// GetResults serves ?level=&location=. Level defaults to NATIONAL.
func (h *ResultHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	electionID, err := uuid.Parse(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid election id.")
		return
	}

	rawLevel := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("level")))
	if rawLevel == "" {
		rawLevel = string(domain.LevelNational)
	}
	level, err := domain.ParseLevel(rawLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.UserMessage(err))
		return
	}

	input := ports.ResultsInput{
		Level:      level,
		LocationID: r.URL.Query().Get("location"),
		ElectionID: electionID,
	}

	results, err := h.service.GetResults(r.Context(), input)
	if err != nil {
		writeError(w, statusFor(err), domain.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}
