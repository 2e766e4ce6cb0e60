// Package asset handles image upload, serving and soft deletion.
package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/boardstore"
	"github.com/driftboard/driftboard/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Type   string  `json:"type"`
	Name   string  `json:"name"`
}

// Handler serves asset upload and retrieval endpoints. Files live on disk;
// metadata lives in the store so deletion can be undone.
type Handler struct {
	dir   string
	store boardstore.Store
}

// NewHandler creates a new asset handler that stores files in dir.
func NewHandler(dir string, store boardstore.Store) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, store: store}
}

// Upload handles POST /api/assets/upload (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		http.Error(w, "only PNG and JPEG images are supported", http.StatusBadRequest)
		return
	}

	// Decode to get native dimensions; re-encode everything as PNG so the
	// serving path never has to sniff formats.
	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	bounds := img.Bounds()
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	assetID := typeid.NewAssetID()
	filename := assetID + ".png"
	filePath := filepath.Join(h.dir, filename)

	out, err := os.Create(filePath)
	if err != nil {
		slog.Error("create asset file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		slog.Error("encode png", "error", err)
		os.Remove(filePath)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	record := board.Asset{
		ID:     assetID,
		URL:    fmt.Sprintf("/assets/%s", filename),
		Name:   header.Filename,
		Width:  width,
		Height: height,
	}
	if err := h.store.CreateAsset(r.Context(), record); err != nil {
		slog.Error("persist asset record", "error", err)
		os.Remove(filePath)
		http.Error(w, "failed to save asset", http.StatusInternalServerError)
		return
	}

	resp := UploadResponse{
		ID:     record.ID,
		URL:    record.URL,
		Width:  width,
		Height: height,
		Type:   "png",
		Name:   header.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Get handles GET /api/assets/{assetId} and returns the metadata record.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]

	record, err := h.store.GetAsset(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, boardstore.ErrNotFound) {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		slog.Error("get asset", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// Delete handles DELETE /api/assets/{assetId}. The file stays on disk and
// only the record is marked deleted, so Restore can undo it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, true)
}

// Restore handles POST /api/assets/{assetId}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, false)
}

func (h *Handler) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	assetID := mux.Vars(r)["assetId"]

	if err := h.store.SetAssetDeleted(r.Context(), assetID, deleted); err != nil {
		if errors.Is(err, boardstore.ErrNotFound) {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		slog.Error("set asset deleted", "error", err, "asset_id", assetID, "deleted", deleted)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}
