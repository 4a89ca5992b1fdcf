package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	Agents         ports.AgentAuthenticator
	Realtime       http.HandlerFunc
	Metrics        http.Handler
}

func NewHandler(voteHandler *VoteHandler, statsHandler *StatsHandler, agentHandler *AgentHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})

		r.Route("/servers/{id}", func(r chi.Router) {
			r.Get("/leaderboard", statsHandler.Leaderboard)
			r.Get("/streaks/{username}", voteHandler.Streak)

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(cfg.JWTSecret))
				r.Post("/votes", voteHandler.CastVote)
				r.Get("/votes/eligibility", voteHandler.Eligibility)
			})
		})

		r.Route("/v1", func(r chi.Router) {
			r.Use(AgentMiddleware(cfg.Agents))
			r.Get("/servers/{id}/votes/pending", agentHandler.Pending)
			r.Get("/servers/{id}/votes/bulk", agentHandler.BulkPending)
			r.Post("/servers/{id}/stats", agentHandler.RecordStats)
			r.Get("/servers/{id}/leaderboard", agentHandler.Leaderboard)
			r.Get("/servers/{id}/summary", agentHandler.Summary)
			r.Post("/votes/{id}/claim", agentHandler.Claim)
		})
	})

	if cfg.Realtime != nil {
		r.Get("/ws/votes", cfg.Realtime)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	return r
}
