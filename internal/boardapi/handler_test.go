package boardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/boardstore"
)

type recordingNotifier struct {
	mu     sync.Mutex
	canvas []int64
	view   []int64
}

func (n *recordingNotifier) CanvasChanged(_ string, rev int64) {
	n.mu.Lock()
	n.canvas = append(n.canvas, rev)
	n.mu.Unlock()
}

func (n *recordingNotifier) ViewChanged(_ string, rev int64) {
	n.mu.Lock()
	n.view = append(n.view, rev)
	n.mu.Unlock()
}

func newTestRouter(t *testing.T) (*mux.Router, *boardstore.MemoryStore, *recordingNotifier) {
	t.Helper()
	store := boardstore.NewMemory()
	notifier := &recordingNotifier{}
	h := NewHandler(store, notifier)

	r := mux.NewRouter()
	r.HandleFunc("/api/projects/{projectId}/canvas", h.GetCanvas).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/canvas", h.PutCanvas).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}/view", h.GetView).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/view", h.PutView).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}", h.GetProject).Methods("GET")
	return r, store, notifier
}

func seedProject(t *testing.T, store *boardstore.MemoryStore) string {
	t.Helper()
	p := board.Project{ID: "proj_1", Name: "Board", OwnerID: "user_1"}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p.ID
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetCanvasEmptyProject(t *testing.T) {
	r, store, _ := newTestRouter(t)
	id := seedProject(t, store)

	w := doJSON(t, r, "GET", "/api/projects/"+id+"/canvas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", w.Code)
	}

	var resp canvasResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Rev != 1 || resp.Objects == nil || len(resp.Objects) != 0 {
		t.Fatalf("resp %+v want rev 1 and empty non-null objects", resp)
	}
}

func TestPutCanvasHappyPath(t *testing.T) {
	r, store, notifier := newTestRouter(t)
	id := seedProject(t, store)

	w := doJSON(t, r, "PUT", "/api/projects/"+id+"/canvas", putCanvasRequest{
		Objects: []board.CanvasObject{{ID: "a", ScaleX: 1, ScaleY: 1}},
		BaseRev: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var resp revResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Rev != 2 {
		t.Fatalf("rev=%d want 2", resp.Rev)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.canvas) != 1 || notifier.canvas[0] != 2 {
		t.Fatalf("notifications %v want [2]", notifier.canvas)
	}
}

func TestPutCanvasStaleRevConflicts(t *testing.T) {
	r, store, notifier := newTestRouter(t)
	id := seedProject(t, store)

	first := doJSON(t, r, "PUT", "/api/projects/"+id+"/canvas", putCanvasRequest{
		Objects: []board.CanvasObject{{ID: "a"}}, BaseRev: 1,
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first put status=%d", first.Code)
	}

	stale := doJSON(t, r, "PUT", "/api/projects/"+id+"/canvas", putCanvasRequest{
		Objects: []board.CanvasObject{{ID: "b"}}, BaseRev: 1,
	})
	if stale.Code != http.StatusConflict {
		t.Fatalf("stale put status=%d want 409", stale.Code)
	}

	// No notification for the rejected write.
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.canvas) != 1 {
		t.Fatalf("notifications %v want exactly one", notifier.canvas)
	}
}

func TestPutViewRoundTrip(t *testing.T) {
	r, store, notifier := newTestRouter(t)
	id := seedProject(t, store)

	w := doJSON(t, r, "PUT", "/api/projects/"+id+"/view", putViewRequest{
		View:    board.ViewState{Zoom: 0.5},
		BaseRev: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	get := doJSON(t, r, "GET", "/api/projects/"+id+"/view", nil)
	var resp viewResponse
	json.Unmarshal(get.Body.Bytes(), &resp)
	if resp.Rev != 2 || resp.View.Zoom != 0.5 {
		t.Fatalf("resp %+v want rev 2 zoom 0.5", resp)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.view) != 1 {
		t.Fatalf("view notifications %v want one", notifier.view)
	}
}

func TestUnknownProjectIs404(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, "GET", "/api/projects/proj_ghost/canvas", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", w.Code)
	}
	w = doJSON(t, r, "PUT", "/api/projects/proj_ghost/canvas", putCanvasRequest{BaseRev: 1})
	if w.Code != http.StatusNotFound {
		t.Fatalf("put status=%d want 404", w.Code)
	}
}
