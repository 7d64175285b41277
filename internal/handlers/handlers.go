package handlers

import (
	"github.com/gorilla/mux"

	"media-variants/internal/database"
	"media-variants/internal/preset"
	"media-variants/internal/progress"
	"media-variants/internal/regen"
	"media-variants/internal/uploader"
	"media-variants/internal/variant"
)

// maxUploadBytes caps multipart uploads at 100 MiB.
const maxUploadBytes = 100 << 20

type Handlers struct {
	db           *database.Database
	registry     *preset.Registry
	resolver     *variant.PathResolver
	uploader     *uploader.Uploader
	orchestrator *regen.Orchestrator
	dispatcher   uploader.Dispatcher
	hub          *progress.Hub
}

func New(db *database.Database, registry *preset.Registry, resolver *variant.PathResolver,
	up *uploader.Uploader, orchestrator *regen.Orchestrator, dispatcher uploader.Dispatcher,
	hub *progress.Hub) *Handlers {

	return &Handlers{
		db:           db,
		registry:     registry,
		resolver:     resolver,
		uploader:     up,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		hub:          hub,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET", "HEAD").Name("health")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD").Name("liveness")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET").Name("readiness")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods("GET").Name("version")
	api.HandleFunc("/presets", h.ListPresets).Methods("GET").Name("presets")
	api.HandleFunc("/upload", h.Upload).Methods("POST").Name("upload")
	api.HandleFunc("/media", h.ListMedia).Methods("GET").Name("mediaList")
	api.HandleFunc("/media/{id}", h.GetMedia).Methods("GET").Name("mediaGet")
	api.HandleFunc("/media/{id}", h.DeleteMedia).Methods("DELETE").Name("mediaDelete")
	api.HandleFunc("/media/{id}/focal-point", h.UpdateFocalPoint).Methods("PATCH", "PUT").Name("focalPoint")
	api.HandleFunc("/media/{id}/regenerate", h.Regenerate).Methods("POST").Name("regenerate")
	api.HandleFunc("/media/{id}/progress", h.ProgressStream).Methods("GET").Name("progress")
}
