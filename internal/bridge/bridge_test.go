package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/geom"
)

// fakeServer implements CanvasService and ViewService with revision checks,
// mirroring the real store's optimistic concurrency.
type fakeServer struct {
	mu        sync.Mutex
	objects   []board.CanvasObject
	canvasRev int64
	view      board.ViewState
	viewRev   int64

	canvasPuts  int
	inFlight    int
	maxInFlight int
	putDelay    time.Duration
}

func newFakeServer() *fakeServer {
	return &fakeServer{canvasRev: 1, viewRev: 1, view: board.ViewState{Zoom: 0.25}}
}

func (f *fakeServer) GetCanvas(_ context.Context, _ string) ([]board.CanvasObject, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]board.CanvasObject(nil), f.objects...), f.canvasRev, nil
}

func (f *fakeServer) PutCanvas(_ context.Context, _ string, objects []board.CanvasObject, baseRev int64) (int64, error) {
	f.mu.Lock()
	f.canvasPuts++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.putDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if baseRev != f.canvasRev {
		return 0, ErrConflict
	}
	f.objects = append([]board.CanvasObject(nil), objects...)
	f.canvasRev++
	return f.canvasRev, nil
}

func (f *fakeServer) GetView(_ context.Context, _ string) (board.ViewState, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view, f.viewRev, nil
}

func (f *fakeServer) PutView(_ context.Context, _ string, view board.ViewState, baseRev int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if baseRev != f.viewRev {
		return 0, ErrConflict
	}
	f.view = view
	f.viewRev++
	return f.viewRev, nil
}

type memDrafts struct {
	mu sync.Mutex
	m  map[string]*Draft
}

func newMemDrafts() *memDrafts { return &memDrafts{m: make(map[string]*Draft)} }

func (d *memDrafts) Read(projectID string) (*Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.m[projectID] == nil {
		return nil, ErrNoDraft
	}
	return d.m[projectID], nil
}

func (d *memDrafts) Write(projectID string, draft *Draft) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[projectID] = draft
	return nil
}

func fastOptions() Options {
	return Options{
		DraftDebounce: time.Millisecond,
		NetDebounce:   5 * time.Millisecond,
		FlushInterval: 50 * time.Millisecond,
	}
}

func waitClean(t *testing.T, b *Bridge) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for b.Dirty() {
		if time.Now().After(deadline) {
			t.Fatal("bridge never became clean")
		}
		time.Sleep(time.Millisecond)
	}
}

func objectsNamed(ids ...string) []board.CanvasObject {
	out := make([]board.CanvasObject, len(ids))
	for i, id := range ids {
		out[i] = board.CanvasObject{ID: id, ScaleX: 1, ScaleY: 1}
	}
	return out
}

func TestSaveAdvancesRevision(t *testing.T) {
	srv := newFakeServer()
	b := New("proj_1", srv, srv, newMemDrafts(), fastOptions())
	b.Seed(nil, board.ViewState{Zoom: 0.25}, 1, 1)

	b.CanvasChanged(objectsNamed("a"))
	waitClean(t, b)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.canvasRev != 2 {
		t.Fatalf("server rev=%d want 2", srv.canvasRev)
	}
	if len(srv.objects) != 1 || srv.objects[0].ID != "a" {
		t.Fatalf("server objects %v want [a]", srv.objects)
	}
}

func TestRapidEditsCoalesceAndFinalWins(t *testing.T) {
	srv := newFakeServer()
	srv.putDelay = 10 * time.Millisecond
	b := New("proj_1", srv, srv, newMemDrafts(), fastOptions())
	b.Seed(nil, board.ViewState{Zoom: 0.25}, 1, 1)

	for i := 0; i < 20; i++ {
		b.CanvasChanged(objectsNamed("a", "b"))
		time.Sleep(2 * time.Millisecond)
	}
	final := objectsNamed("final")
	b.CanvasChanged(final)
	waitClean(t, b)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.maxInFlight > 1 {
		t.Fatalf("maxInFlight=%d want 1", srv.maxInFlight)
	}
	if srv.canvasPuts >= 21 {
		t.Fatalf("canvasPuts=%d, debounce did not coalesce", srv.canvasPuts)
	}
	if len(srv.objects) != 1 || srv.objects[0].ID != "final" {
		t.Fatalf("server objects %v want [final]", srv.objects)
	}
}

func TestConflictResyncsFromServer(t *testing.T) {
	srv := newFakeServer()
	drafts := newMemDrafts()
	b := New("proj_1", srv, srv, drafts, fastOptions())
	b.Seed(nil, board.ViewState{Zoom: 0.25}, 1, 1)

	var mu sync.Mutex
	var remote []board.CanvasObject
	var notice string
	b.OnRemoteCanvas = func(objects []board.CanvasObject) {
		mu.Lock()
		remote = objects
		mu.Unlock()
	}
	b.OnNotice = func(msg string) {
		mu.Lock()
		notice = msg
		mu.Unlock()
	}

	// Another session writes first, bumping the server past our base rev.
	if _, err := srv.PutCanvas(context.Background(), "proj_1", objectsNamed("theirs"), 1); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	b.CanvasChanged(objectsNamed("ours"))
	waitClean(t, b)

	mu.Lock()
	defer mu.Unlock()
	if len(remote) != 1 || remote[0].ID != "theirs" {
		t.Fatalf("remote objects %v want [theirs]", remote)
	}
	if notice == "" {
		t.Fatal("no user notice after conflict recovery")
	}

	// The resynced base rev must allow the next save to succeed.
	b.OnRemoteCanvas = nil
	b.CanvasChanged(objectsNamed("retry"))
	waitClean(t, b)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.objects) != 1 || srv.objects[0].ID != "retry" {
		t.Fatalf("server objects %v want [retry]", srv.objects)
	}
}

func TestOfflineSuspendsAndReconnectFlushes(t *testing.T) {
	srv := newFakeServer()
	b := New("proj_1", srv, srv, newMemDrafts(), fastOptions())
	b.Seed(nil, board.ViewState{Zoom: 0.25}, 1, 1)

	b.SetOnline(false)
	b.CanvasChanged(objectsNamed("offline-edit"))

	time.Sleep(30 * time.Millisecond)
	srv.mu.Lock()
	puts := srv.canvasPuts
	srv.mu.Unlock()
	if puts != 0 {
		t.Fatalf("canvasPuts=%d while offline, want 0", puts)
	}
	if !b.Dirty() {
		t.Fatal("offline edit not tracked as dirty")
	}

	b.SetOnline(true)
	waitClean(t, b)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.objects) != 1 || srv.objects[0].ID != "offline-edit" {
		t.Fatalf("server objects %v want [offline-edit]", srv.objects)
	}
}

func TestDraftWrittenOnShortDebounce(t *testing.T) {
	srv := newFakeServer()
	drafts := newMemDrafts()
	b := New("proj_1", srv, srv, drafts, fastOptions())
	b.Seed(nil, board.ViewState{Zoom: 0.25}, 1, 1)
	b.SetOnline(false) // isolate the draft path

	b.CanvasChanged(objectsNamed("draft-edit"))
	b.ViewChanged(board.ViewState{Offset: geom.Point{X: 5}, Zoom: 0.5})

	deadline := time.Now().Add(time.Second)
	for {
		d, _ := drafts.Read("proj_1")
		if d != nil && len(d.Objects) == 1 && d.View.Zoom == 0.5 {
			if !d.DirtyCanvas || !d.DirtyView {
				t.Fatalf("draft dirty flags %+v want both set while offline", d)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("draft never written")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOpenWithoutDraftSeedsFromServer(t *testing.T) {
	srv := newFakeServer()
	srv.objects = objectsNamed("saved")
	b := New("proj_1", srv, srv, newMemDrafts(), fastOptions())

	objects, view, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(objects) != 1 || objects[0].ID != "saved" {
		t.Fatalf("objects %v want [saved]", objects)
	}
	if view.Zoom != 0.25 {
		t.Fatalf("view zoom=%v want 0.25", view.Zoom)
	}
	if b.Dirty() {
		t.Fatal("bridge dirty after a clean open")
	}
}

func TestOpenResumesDirtyDraftAfterRestart(t *testing.T) {
	srv := newFakeServer()
	drafts := newMemDrafts()

	// A previous session edited offline, wrote its draft, and exited before
	// the save went through.
	drafts.Write("proj_1", &Draft{
		Objects:     objectsNamed("unsent"),
		View:        board.ViewState{Offset: geom.Point{X: 9}, Zoom: 0.5},
		DirtyCanvas: true,
		DirtyView:   true,
		CanvasRev:   1,
		ViewRev:     1,
		SavedAt:     time.Now(),
	})

	b := New("proj_1", srv, srv, drafts, fastOptions())
	objects, view, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(objects) != 1 || objects[0].ID != "unsent" {
		t.Fatalf("objects %v want the draft's [unsent]", objects)
	}
	if view.Zoom != 0.5 {
		t.Fatalf("view zoom=%v want the draft's 0.5", view.Zoom)
	}
	if !b.Dirty() {
		t.Fatal("resumed draft not marked dirty")
	}

	// The rescheduled save pushes the resumed edits without further input.
	waitClean(t, b)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.objects) != 1 || srv.objects[0].ID != "unsent" {
		t.Fatalf("server objects %v want [unsent]", srv.objects)
	}
	if srv.view.Zoom != 0.5 {
		t.Fatalf("server view zoom=%v want 0.5", srv.view.Zoom)
	}
}

func TestOpenStaleDraftLosesToServer(t *testing.T) {
	srv := newFakeServer()
	drafts := newMemDrafts()

	// Another window saved twice since this draft was written.
	srv.PutCanvas(context.Background(), "proj_1", objectsNamed("newer"), 1)
	srv.PutCanvas(context.Background(), "proj_1", objectsNamed("newest"), 2)

	drafts.Write("proj_1", &Draft{
		Objects:     objectsNamed("stale"),
		DirtyCanvas: true,
		CanvasRev:   1,
		SavedAt:     time.Now(),
	})

	b := New("proj_1", srv, srv, drafts, fastOptions())
	objects, _, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(objects) != 1 || objects[0].ID != "newest" {
		t.Fatalf("objects %v want the server's [newest]", objects)
	}
	if b.Dirty() {
		t.Fatal("stale draft left the bridge dirty")
	}
}

func TestStopFlushesDirtyState(t *testing.T) {
	srv := newFakeServer()
	b := New("proj_1", srv, srv, newMemDrafts(), Options{
		DraftDebounce: time.Millisecond,
		NetDebounce:   time.Hour, // never fires on its own
		FlushInterval: time.Hour,
	})
	b.Seed(nil, board.ViewState{Zoom: 0.25}, 1, 1)
	b.Start()

	b.CanvasChanged(objectsNamed("last-edit"))
	b.Stop()
	waitClean(t, b)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.objects) != 1 || srv.objects[0].ID != "last-edit" {
		t.Fatalf("server objects %v want [last-edit]", srv.objects)
	}
}
