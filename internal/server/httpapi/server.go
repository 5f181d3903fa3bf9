// Package httpapi exposes the fileward HTTP API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/semekhin/fileward/internal/service"
	"github.com/semekhin/fileward/internal/token"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth       service.AuthService
	files      service.FileService
	verifier   token.Verifier
	refreshTTL time.Duration
	log        *zap.Logger
}

// New constructs the HTTP server with injected services.
func New(auth service.AuthService, files service.FileService, verifier token.Verifier, refreshTTL time.Duration, log *zap.Logger) *Server {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Server{auth: auth, files: files, verifier: verifier, refreshTTL: refreshTTL, log: log}
}

// Router assembles all routes behind shared middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.verifier))
		r.Post("/logout", s.handleLogout)
		r.Post("/change-password", s.handleChangePassword)
		r.Delete("/delete-account", s.handleDeleteAccount)

		r.Get("/files", s.handleListFiles)
		r.Post("/upload", s.handleUpload)
		r.Get("/download/{id}", s.handleDownload)
		r.Get("/view/{id}", s.handleView)
		r.Delete("/delete/{id}", s.handleDeleteFile)
		r.Get("/usage", s.handleUsage)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
