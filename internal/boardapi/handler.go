// Package boardapi exposes project, canvas and view persistence over HTTP.
package boardapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/driftboard/driftboard/internal/auth"
	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/boardstore"
	"github.com/driftboard/driftboard/internal/typeid"
)

// Notifier is told about accepted writes so other open sessions can
// invalidate their copy. A nil-safe no-op implementation is fine.
type Notifier interface {
	CanvasChanged(projectID string, rev int64)
	ViewChanged(projectID string, rev int64)
}

type Handler struct {
	store    boardstore.Store
	notifier Notifier
}

func NewHandler(store boardstore.Store, notifier Notifier) *Handler {
	return &Handler{store: store, notifier: notifier}
}

type createProjectRequest struct {
	Name string `json:"name"`
}

type canvasResponse struct {
	Objects []board.CanvasObject `json:"objects"`
	Rev     int64                `json:"rev"`
}

type putCanvasRequest struct {
	Objects []board.CanvasObject `json:"objects"`
	BaseRev int64                `json:"baseRev"`
}

type viewResponse struct {
	View board.ViewState `json:"view"`
	Rev  int64           `json:"rev"`
}

type putViewRequest struct {
	View    board.ViewState `json:"view"`
	BaseRev int64           `json:"baseRev"`
}

type revResponse struct {
	Rev int64 `json:"rev"`
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	project := board.Project{
		ID:      typeid.NewProjectID(),
		Name:    req.Name,
		OwnerID: userID,
	}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		slog.Error("create project failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	projects, err := h.store.ListProjects(r.Context(), userID)
	if err != nil {
		slog.Error("list projects failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if projects == nil {
		projects = []board.Project{}
	}

	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	if err := h.store.DeleteProject(r.Context(), projectID); err != nil {
		handleStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	objects, rev, err := h.store.GetCanvas(r.Context(), projectID)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if objects == nil {
		objects = []board.CanvasObject{}
	}

	writeJSON(w, http.StatusOK, canvasResponse{Objects: objects, Rev: rev})
}

// PutCanvas replaces the whole object list. The write is rejected with 409
// when baseRev no longer matches the stored revision; the client is expected
// to GET the authoritative state and retry on top of it.
func (h *Handler) PutCanvas(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var req putCanvasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rev, err := h.store.PutCanvas(r.Context(), projectID, req.Objects, req.BaseRev)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.CanvasChanged(projectID, rev)
	}
	writeJSON(w, http.StatusOK, revResponse{Rev: rev})
}

func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	view, rev, err := h.store.GetView(r.Context(), projectID)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewResponse{View: view, Rev: rev})
}

func (h *Handler) PutView(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var req putViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rev, err := h.store.PutView(r.Context(), projectID, req.View, req.BaseRev)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.ViewChanged(projectID, rev)
	}
	writeJSON(w, http.StatusOK, revResponse{Rev: rev})
}

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, boardstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, boardstore.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "stale revision"})
	default:
		slog.Error("store error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
