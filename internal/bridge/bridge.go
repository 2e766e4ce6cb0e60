// Package bridge synchronizes the in-memory workspace with the local draft
// store and the remote persistence services. Local drafts are written on a
// short debounce independent of connectivity; network writes are debounced
// longer, coalesced to at most one in flight per resource, and guarded by
// optimistic-concurrency revisions.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/driftboard/driftboard/internal/board"
)

// ErrConflict is returned by Put operations when the client's base revision
// is stale.
var ErrConflict = errors.New("stale revision")

// ErrNoDraft is returned by DraftStore.Read when no draft exists for the
// project.
var ErrNoDraft = errors.New("no draft")

// CanvasService persists the object list per project.
type CanvasService interface {
	GetCanvas(ctx context.Context, projectID string) ([]board.CanvasObject, int64, error)
	PutCanvas(ctx context.Context, projectID string, objects []board.CanvasObject, baseRev int64) (int64, error)
}

// ViewService persists the camera per project.
type ViewService interface {
	GetView(ctx context.Context, projectID string) (board.ViewState, int64, error)
	PutView(ctx context.Context, projectID string, view board.ViewState, baseRev int64) (int64, error)
}

// Draft is the locally durable per-project working copy.
type Draft struct {
	Objects     []board.CanvasObject `json:"objects"`
	View        board.ViewState      `json:"view"`
	DirtyCanvas bool                 `json:"dirtyCanvas"`
	DirtyView   bool                 `json:"dirtyView"`
	CanvasRev   int64                `json:"canvasRev"`
	ViewRev     int64                `json:"viewRev"`
	SavedAt     time.Time            `json:"savedAt"`
}

// DraftStore is durable key-value storage for drafts, keyed by project id.
type DraftStore interface {
	Read(projectID string) (*Draft, error)
	Write(projectID string, d *Draft) error
}

// State names for the per-resource save machine.
type resourceState int

const (
	stateClean resourceState = iota
	stateDirty
	stateSaving
	stateResyncing
)

// resource tracks one save machine (canvas or view).
type resource struct {
	state   resourceState
	baseRev int64
	pending bool // a newer payload arrived while a save was in flight
}

// Options tunes the bridge timers.
type Options struct {
	DraftDebounce time.Duration // local draft write delay
	NetDebounce   time.Duration // network write delay
	FlushInterval time.Duration // dirty retry period while online
}

// Bridge owns persistence for one project. Safe for concurrent use; the
// workspace goroutine feeds changes in, network completions arrive on their
// own goroutines.
type Bridge struct {
	projectID string
	canvasSvc CanvasService
	viewSvc   ViewService
	drafts    DraftStore
	opts      Options

	// OnRemoteCanvas delivers authoritative objects after conflict recovery;
	// the host must apply them on the workspace goroutine.
	OnRemoteCanvas func(objects []board.CanvasObject)
	OnRemoteView   func(view board.ViewState)
	// OnNotice surfaces transient user-visible messages.
	OnNotice func(msg string)

	mu        sync.Mutex
	online    bool
	objects   []board.CanvasObject
	view      board.ViewState
	canvasRes resource
	viewRes   resource

	draftTimer  *time.Timer
	canvasTimer *time.Timer
	viewTimer   *time.Timer

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a bridge for the given project. Base revisions come from the
// load path (server or newer draft).
func New(projectID string, canvasSvc CanvasService, viewSvc ViewService, drafts DraftStore, opts Options) *Bridge {
	if opts.DraftDebounce == 0 {
		opts.DraftDebounce = 50 * time.Millisecond
	}
	if opts.NetDebounce == 0 {
		opts.NetDebounce = 400 * time.Millisecond
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = 5 * time.Second
	}
	return &Bridge{
		projectID: projectID,
		canvasSvc: canvasSvc,
		viewSvc:   viewSvc,
		drafts:    drafts,
		opts:      opts,
		online:    true,
		stop:      make(chan struct{}),
	}
}

// Start launches the periodic flush loop.
func (b *Bridge) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.opts.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.FlushNow()
			case <-b.stop:
				return
			}
		}
	}()
}

// Stop halts the flush loop and attempts one final flush.
func (b *Bridge) Stop() {
	close(b.stop)
	b.wg.Wait()
	b.FlushNow()
}

// Open loads the project's working state for mounting. The server copy is
// fetched first; a local draft that carries unsaved edits against the same
// or a newer revision wins over it, and those resources re-enter the dirty
// state so the save machinery retries edits made before the process last
// exited. A draft left behind by an older revision loses to the server.
// Returns the objects and view the caller should mount.
func (b *Bridge) Open(ctx context.Context) ([]board.CanvasObject, board.ViewState, error) {
	objects, canvasRev, err := b.canvasSvc.GetCanvas(ctx, b.projectID)
	if err != nil {
		return nil, board.ViewState{}, err
	}
	view, viewRev, err := b.viewSvc.GetView(ctx, b.projectID)
	if err != nil {
		return nil, board.ViewState{}, err
	}

	d, derr := b.drafts.Read(b.projectID)
	if derr != nil {
		if !errors.Is(derr, ErrNoDraft) {
			slog.Warn("draft read failed", "project", b.projectID, "error", derr)
		}
		d = nil
	}

	canvasFromDraft := d != nil && d.DirtyCanvas && d.CanvasRev >= canvasRev
	viewFromDraft := d != nil && d.DirtyView && d.ViewRev >= viewRev
	if canvasFromDraft {
		objects = d.Objects
	}
	if viewFromDraft {
		view = d.View
	}

	b.Seed(objects, view, canvasRev, viewRev)

	b.mu.Lock()
	if canvasFromDraft {
		b.canvasRes.state = stateDirty
		b.canvasTimer = reschedule(b.canvasTimer, b.opts.NetDebounce, b.saveCanvas)
	}
	if viewFromDraft {
		b.viewRes.state = stateDirty
		b.viewTimer = reschedule(b.viewTimer, b.opts.NetDebounce, b.saveView)
	}
	b.mu.Unlock()

	return objects, view, nil
}

// Seed sets the last-known server revisions and current payloads without
// marking anything dirty. Called once after project load.
func (b *Bridge) Seed(objects []board.CanvasObject, view board.ViewState, canvasRev, viewRev int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects = objects
	b.view = view
	b.canvasRes = resource{state: stateClean, baseRev: canvasRev}
	b.viewRes = resource{state: stateClean, baseRev: viewRev}
}

// SetOnline flips connectivity. Going online flushes immediately; going
// offline suspends flush attempts without discarding dirty state.
func (b *Bridge) SetOnline(online bool) {
	b.mu.Lock()
	was := b.online
	b.online = online
	b.mu.Unlock()
	if online && !was {
		b.FlushNow()
	}
}

// Dirty reports whether unsaved changes exist for either resource.
func (b *Bridge) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canvasRes.state != stateClean || b.viewRes.state != stateClean
}

// CanvasChanged records a new object snapshot. The draft write and the
// network save are each scheduled on their own debounce.
func (b *Bridge) CanvasChanged(objects []board.CanvasObject) {
	b.mu.Lock()
	b.objects = objects
	if b.canvasRes.state == stateClean {
		b.canvasRes.state = stateDirty
	}
	b.scheduleDraftLocked()
	b.canvasTimer = reschedule(b.canvasTimer, b.opts.NetDebounce, b.saveCanvas)
	b.mu.Unlock()
}

// ViewChanged records a new camera state.
func (b *Bridge) ViewChanged(view board.ViewState) {
	b.mu.Lock()
	b.view = view
	if b.viewRes.state == stateClean {
		b.viewRes.state = stateDirty
	}
	b.scheduleDraftLocked()
	b.viewTimer = reschedule(b.viewTimer, b.opts.NetDebounce, b.saveView)
	b.mu.Unlock()
}

// FlushNow pushes both resources if dirty and online. Used by the periodic
// loop, reconnect, and shutdown.
func (b *Bridge) FlushNow() {
	b.mu.Lock()
	canvasDirty := b.canvasRes.state == stateDirty
	viewDirty := b.viewRes.state == stateDirty
	b.mu.Unlock()
	if canvasDirty {
		b.saveCanvas()
	}
	if viewDirty {
		b.saveView()
	}
}

func reschedule(t *time.Timer, d time.Duration, fn func()) *time.Timer {
	if t != nil {
		t.Stop()
	}
	return time.AfterFunc(d, fn)
}

func (b *Bridge) scheduleDraftLocked() {
	if b.draftTimer != nil {
		b.draftTimer.Stop()
	}
	b.draftTimer = time.AfterFunc(b.opts.DraftDebounce, b.writeDraft)
}

func (b *Bridge) writeDraft() {
	b.mu.Lock()
	d := &Draft{
		Objects:     b.objects,
		View:        b.view,
		DirtyCanvas: b.canvasRes.state != stateClean,
		DirtyView:   b.viewRes.state != stateClean,
		CanvasRev:   b.canvasRes.baseRev,
		ViewRev:     b.viewRes.baseRev,
		SavedAt:     time.Now(),
	}
	b.mu.Unlock()

	if err := b.drafts.Write(b.projectID, d); err != nil {
		slog.Warn("draft write failed", "project", b.projectID, "error", err)
	}
}

// saveCanvas runs the canvas save machine: dirty → saving → clean on ack,
// resync on conflict, back to dirty on transient failure. Never more than
// one PUT in flight; a payload that arrives mid-save is resent right after.
func (b *Bridge) saveCanvas() {
	b.mu.Lock()
	if !b.online || b.canvasRes.state == stateSaving || b.canvasRes.state == stateResyncing {
		if b.canvasRes.state == stateSaving {
			b.canvasRes.pending = true
		}
		b.mu.Unlock()
		return
	}
	if b.canvasRes.state != stateDirty {
		b.mu.Unlock()
		return
	}
	b.canvasRes.state = stateSaving
	b.canvasRes.pending = false
	objects := b.objects
	baseRev := b.canvasRes.baseRev
	b.mu.Unlock()

	go func() {
		rev, err := b.canvasSvc.PutCanvas(context.Background(), b.projectID, objects, baseRev)

		switch {
		case err == nil:
			b.mu.Lock()
			b.canvasRes.baseRev = rev
			resend := b.canvasRes.pending
			if resend {
				b.canvasRes.state = stateDirty
			} else {
				b.canvasRes.state = stateClean
			}
			b.mu.Unlock()
			b.writeDraft()
			if resend {
				b.saveCanvas()
			}

		case errors.Is(err, ErrConflict):
			b.resyncCanvas()

		default:
			slog.Warn("canvas save failed", "project", b.projectID, "error", err)
			b.mu.Lock()
			b.canvasRes.state = stateDirty // periodic flush retries
			b.mu.Unlock()
		}
	}()
}

// resyncCanvas pulls authoritative state after a revision conflict, replaces
// local state, and clears the dirty flag. Not a user error; surfaced as a
// brief notice.
func (b *Bridge) resyncCanvas() {
	b.mu.Lock()
	b.canvasRes.state = stateResyncing
	b.mu.Unlock()

	objects, rev, err := b.canvasSvc.GetCanvas(context.Background(), b.projectID)
	if err != nil {
		slog.Warn("canvas resync failed", "project", b.projectID, "error", err)
		b.mu.Lock()
		b.canvasRes.state = stateDirty
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	b.objects = objects
	b.canvasRes.baseRev = rev
	b.canvasRes.state = stateClean
	b.canvasRes.pending = false
	b.mu.Unlock()

	if b.OnRemoteCanvas != nil {
		b.OnRemoteCanvas(objects)
	}
	if b.OnNotice != nil {
		b.OnNotice("Board was updated in another window; reloaded the latest version.")
	}
	b.writeDraft()
}

func (b *Bridge) saveView() {
	b.mu.Lock()
	if !b.online || b.viewRes.state == stateSaving || b.viewRes.state == stateResyncing {
		if b.viewRes.state == stateSaving {
			b.viewRes.pending = true
		}
		b.mu.Unlock()
		return
	}
	if b.viewRes.state != stateDirty {
		b.mu.Unlock()
		return
	}
	b.viewRes.state = stateSaving
	b.viewRes.pending = false
	view := b.view
	baseRev := b.viewRes.baseRev
	b.mu.Unlock()

	go func() {
		rev, err := b.viewSvc.PutView(context.Background(), b.projectID, view, baseRev)

		switch {
		case err == nil:
			b.mu.Lock()
			b.viewRes.baseRev = rev
			resend := b.viewRes.pending
			if resend {
				b.viewRes.state = stateDirty
			} else {
				b.viewRes.state = stateClean
			}
			b.mu.Unlock()
			if resend {
				b.saveView()
			}

		case errors.Is(err, ErrConflict):
			b.resyncView()

		default:
			slog.Warn("view save failed", "project", b.projectID, "error", err)
			b.mu.Lock()
			b.viewRes.state = stateDirty
			b.mu.Unlock()
		}
	}()
}

func (b *Bridge) resyncView() {
	b.mu.Lock()
	b.viewRes.state = stateResyncing
	b.mu.Unlock()

	view, rev, err := b.viewSvc.GetView(context.Background(), b.projectID)
	if err != nil {
		slog.Warn("view resync failed", "project", b.projectID, "error", err)
		b.mu.Lock()
		b.viewRes.state = stateDirty
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	b.view = view
	b.viewRes.baseRev = rev
	b.viewRes.state = stateClean
	b.viewRes.pending = false
	b.mu.Unlock()

	if b.OnRemoteView != nil {
		b.OnRemoteView(view)
	}
}
