package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewHandler(voterHandler *VoterHandler, voteHandler *VoteHandler, resultHandler *ResultHandler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/elections/{electionID}/results", resultHandler.GetResults)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret))

			r.Post("/voters/verify", voterHandler.Verify)
			r.Get("/voters/me/status", voterHandler.Status)
			r.Post("/elections/{electionID}/votes", voteHandler.CastVote)
		})
	})

	return r
}
