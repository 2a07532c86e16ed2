package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"versioned-notes-server/internal/config"
	"versioned-notes-server/internal/middleware"
)

type Routes struct {
	Auth          *AuthHandler
	Notes         *NoteHandler
	Media         *MediaHandler
	Authenticator middleware.Authenticator
	RateLimiter   *middleware.RateLimiter // nil disables rate limiting
	CORS          config.CORSConfig
	UploadsDir    string
	Backend       string
	Log           zerolog.Logger
}

func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(rt.Log))
	r.Use(middleware.CORSMiddleware(
		rt.CORS.AllowedOrigins,
		rt.CORS.AllowedMethods,
		rt.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()
	if rt.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rt.RateLimiter))
	}

	api.HandleFunc("/auth/register", rt.Auth.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", rt.Auth.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", rt.Auth.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(rt.Authenticator))

	protected.HandleFunc("/media", rt.Media.Upload).Methods("POST", "OPTIONS")

	protected.HandleFunc("/notes", rt.Notes.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes", rt.Notes.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", rt.Notes.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", rt.Notes.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", rt.Notes.Delete).Methods("DELETE", "OPTIONS")

	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(rt.UploadsDir))),
	).Methods("GET", "HEAD")

	r.HandleFunc("/health", Health(rt.Backend)).Methods("GET")

	return r
}
