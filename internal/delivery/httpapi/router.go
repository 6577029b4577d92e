package httpapi

import (
	"net/http"

	"SportMatchService/internal/service"
	"SportMatchService/pkg/server"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter собирает маршруты Mini App API
func NewRouter(profiles service.ProfileServiceInterface, matches service.MatchServiceInterface, allowedOrigins []string, logger *zap.Logger) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	h := NewHandler(profiles, matches, logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", server.RequestIDHeader},
		ExposedHeaders:   []string{server.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimiddleware.RealIP)
	r.Use(server.LoggingMiddleware(logger))
	r.Use(server.MetricsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user", h.EnsureUser)
		r.Get("/users/{id}", h.GetUser)
		r.Post("/save-profile", h.SaveProfile)
		r.Post("/save-match-preferences", h.SavePreferences)
		r.Post("/increase-points", h.IncreasePoints)
		r.Post("/match", h.FindMatch)
		r.Get("/match/{id}", h.GetMatch)
		r.Get("/match/{id}/candidates", h.PreviewCandidates)
	})

	return r
}

// NewServer создает HTTP сервер для API
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
