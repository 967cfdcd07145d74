// Package httpapi assembles the chi router for the pipeline API.
package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpapi/handlers"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpkit"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/middleware"
)

func NewRouter(d handlers.Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recover(log))

	// ---- CORS (browser upload flows hit the API directly) ----
	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:5173",
		"http://localhost:8081",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(d)

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- UPLOADS ----
	r.Post("/uploads/presign", h.PresignUpload)

	// ---- JOBS ----
	r.Post("/jobs", h.PostJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{jobID}", h.GetJob)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
