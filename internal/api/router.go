package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/movienight/internal/api/handler"
	"github.com/mcoot/movienight/internal/api/middleware"
	"github.com/mcoot/movienight/internal/services/auth"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/session"
	"github.com/mcoot/movienight/internal/services/watch"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	Sessions        session.Validator
	Coordinator     *membership.Coordinator
	WatchController *watch.Controller
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	userHandler := handler.NewUserHandler(cfg.AuthService, cfg.Coordinator)
	groupHandler := handler.NewGroupHandler(cfg.Coordinator, cfg.WatchController)

	authMiddleware := middleware.Auth(cfg.Sessions)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Common(cfg.Logger)...)

	// Account routes (no auth required)
	api.HandleFunc("/users/register", userHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", userHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/users/refresh", userHandler.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/users/logout", userHandler.Logout).Methods(http.MethodPost)

	// Protected user routes
	me := api.PathPrefix("/users/me").Subrouter()
	me.Use(authMiddleware)
	me.HandleFunc("", userHandler.GetMe).Methods(http.MethodGet)
	me.HandleFunc("/password", userHandler.UpdatePassword).Methods(http.MethodPut)
	me.HandleFunc("/repair", userHandler.Repair).Methods(http.MethodPost)

	// Group routes (all require auth)
	groups := api.PathPrefix("/groups").Subrouter()
	groups.Use(authMiddleware)
	groups.HandleFunc("", groupHandler.Create).Methods(http.MethodPost)
	groups.HandleFunc("/{id}", groupHandler.Get).Methods(http.MethodGet)
	groups.HandleFunc("/{id}/members", groupHandler.AddMember).Methods(http.MethodPost)
	groups.HandleFunc("/{id}/join", groupHandler.Join).Methods(http.MethodPost)
	groups.HandleFunc("/{id}/leave", groupHandler.Leave).Methods(http.MethodPost)
	groups.HandleFunc("/{id}/movies", groupHandler.AddMovie).Methods(http.MethodPost)
	groups.HandleFunc("/{id}/ready", groupHandler.SetReady).Methods(http.MethodPost)
	groups.HandleFunc("/{id}/repair", groupHandler.Repair).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
