package server

import (
	"log/slog"
	"net/http"

	"github.com/dittrime/stride/internal/xhttp/middleware"
)

func NewMux(api *Handler, auth *AuthHandler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/activities", api.HandleListActivities)
	mux.HandleFunc("GET /api/activities/{id}", api.HandleGetActivity)
	mux.HandleFunc("GET /api/stats", api.HandleStats)
	mux.HandleFunc("GET /api/stats/weekly", api.HandleWeeklyStats)
	mux.HandleFunc("GET /api/stats/monthly", api.HandleMonthlyStats)
	mux.HandleFunc("POST /api/refresh", api.HandleRefresh)
	mux.HandleFunc("GET /api/limits", api.HandleLimits)
	mux.HandleFunc("GET /health", HandleHealth)

	mux.HandleFunc("GET /auth/authorize", auth.HandleAuthorize)
	mux.HandleFunc("GET /auth/callback", auth.HandleCallback)
	mux.HandleFunc("GET /auth/status", auth.HandleStatus)

	return middleware.Chain(mux,
		middleware.Recovery,
		middleware.Logging,
		middleware.Logger(logger),
		middleware.RequestID,
	)
}
