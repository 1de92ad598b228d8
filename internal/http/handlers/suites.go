package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListSuites returns every registered test suite, including its work items so
// clients can show what a run will cover.
func (a *App) ListSuites(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Registry.Suites()})
}

// GetSuite returns a single suite by id.
func (a *App) GetSuite(w http.ResponseWriter, r *http.Request) {
	suite, err := a.Registry.Suite(chi.URLParam(r, "suite_id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "suite not found")
		return
	}
	a.json(w, http.StatusOK, suite)
}

// ListStyles returns every registered style.
func (a *App) ListStyles(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Registry.Styles()})
}
