package handlers

import (
	"encoding/json"
	"net/http"

	"stylebench/internal/infra"
	"stylebench/internal/jobs"
	"stylebench/internal/registry"
	"stylebench/internal/storage"
)

// App bundles the handler dependencies.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Store    *jobs.Store
	Broker   *jobs.Broker
	Runner   *jobs.Runner
	Registry *registry.Registry
	Bundles  *storage.BundleStore
	Files    *storage.FileStore
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, msg string) {
	a.json(w, code, errorResponse{Error: slug, Message: msg})
}
