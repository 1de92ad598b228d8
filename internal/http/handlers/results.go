package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/go-chi/chi/v5"

	"stylebench/pkg/zip"
)

// GetResultBundle returns the persisted bundle document for a result. While a
// job is still running this serves whatever batches have been persisted so
// far; bundle saves are atomic so the document is always complete.
func (a *App) GetResultBundle(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	bundle, err := a.Bundles.Load(r.Context(), resultID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "result not found")
			return
		}
		a.Logger.Error().Err(err).Str("result_id", resultID).Msg("handlers: failed to load bundle")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load result")
		return
	}
	a.json(w, http.StatusOK, bundle)
}

// GetResultImage serves one generated image from a result.
func (a *App) GetResultImage(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	itemID := chi.URLParam(r, "item_id")
	key := fmt.Sprintf("results/%s/images/%s.png", resultID, itemID)
	data, err := a.Files.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("handlers: failed to read image")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadResultZip streams every image of a result as a single zip archive.
// Images that went missing on disk since the bundle was written are skipped
// rather than failing the whole download.
func (a *App) DownloadResultZip(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	bundle, err := a.Bundles.Load(r.Context(), resultID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "result not found")
			return
		}
		a.Logger.Error().Err(err).Str("result_id", resultID).Msg("handlers: failed to load bundle")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load result")
		return
	}

	assets := make([]zip.Asset, 0, len(bundle.Images))
	for _, img := range bundle.Images {
		data, err := a.Files.Read(r.Context(), img.Image)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", img.Image).Msg("handlers: skipping missing image in archive")
			continue
		}
		assets = append(assets, zip.Asset{Filename: path.Base(img.Image), Data: data})
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("result_id", resultID).Msg("handlers: failed to build archive")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resultID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
