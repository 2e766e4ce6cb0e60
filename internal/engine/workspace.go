package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/geom"
)

// Options configures a Workspace. Zero values get sensible defaults from
// NewWorkspace.
type Options struct {
	ScreenSize geom.Size

	// Tuning constants. Empirically chosen; safe to adjust per product.
	ResetZoom               float64
	FocusPadding            float64
	CrossAxisWeight         float64
	DoubleClickZoomFraction float64
	ViewAnimDuration        time.Duration
	MinimapPanel            geom.Rect
	MinimapPadding          float64

	Clock func() time.Time

	// Host callbacks. OnCanvasChanged and OnViewChanged are coalesced to at
	// most one invocation per Tick and feed the persistence bridge.
	OnCanvasChanged func(objects []board.CanvasObject)
	OnViewChanged   func(view board.ViewState)
	OpenViewer      func(id string, origin geom.Rect)
	ConfirmDelete   func(objectCount, orphanedAssets int) bool
	DeleteAssets    func(ids []string)
	RestoreAssets   func(ids []string)
}

// Workspace is the infinite-canvas core: it owns the object store, camera,
// selection, gesture state, minimap, and render sync, and is driven by host
// pointer/wheel/key events plus a per-frame Tick.
//
// Not safe for concurrent use. All methods must run on one goroutine; async
// completions (texture fetches) re-enter through an internal queue drained at
// the start of Tick.
type Workspace struct {
	opts Options

	store     *ObjectStore
	viewport  *Viewport
	selection *Selection
	gesture   *GestureController
	minimap   *Minimap
	textures  *AssetTextureCache
	render    *RenderSync
	undo      undoStack

	assets map[string]board.Asset

	queueMu sync.Mutex
	queue   []func()

	canvasDirty bool
	viewDirty   bool
}

// NewWorkspace creates a workspace. adapter receives reconciliation output;
// fetch loads textures by URL.
func NewWorkspace(opts Options, adapter NodeAdapter, fetch LoadFunc) *Workspace {
	if opts.ResetZoom == 0 {
		opts.ResetZoom = 0.05
	}
	if opts.FocusPadding == 0 {
		opts.FocusPadding = 0.08
	}
	if opts.CrossAxisWeight == 0 {
		opts.CrossAxisWeight = 0.45
	}
	if opts.DoubleClickZoomFraction == 0 {
		opts.DoubleClickZoomFraction = 0.5
	}
	if opts.ViewAnimDuration == 0 {
		opts.ViewAnimDuration = DefaultViewAnimDuration
	}
	if opts.MinimapPanel.IsEmpty() {
		opts.MinimapPanel = geom.Rect{
			X:      opts.ScreenSize.Width - 216,
			Y:      opts.ScreenSize.Height - 156,
			Width:  200,
			Height: 140,
		}
	}
	if opts.MinimapPadding == 0 {
		opts.MinimapPadding = 0.05
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ws := &Workspace{
		opts:      opts,
		store:     NewObjectStore(),
		viewport:  NewViewport(opts.ScreenSize),
		selection: NewSelection(),
		minimap:   NewMinimap(opts.MinimapPanel, opts.MinimapPadding),
		assets:    make(map[string]board.Asset),
	}
	ws.gesture = newGestureController(ws)
	ws.textures = NewAssetTextureCache(fetch, ws.post)
	ws.render = NewRenderSync(adapter, ws.textures)
	return ws
}

func (ws *Workspace) clock() time.Time {
	return ws.opts.Clock()
}

// post queues a closure for execution at the start of the next Tick. Safe to
// call from any goroutine; this is the only cross-goroutine entry point.
func (ws *Workspace) post(fn func()) {
	ws.queueMu.Lock()
	ws.queue = append(ws.queue, fn)
	ws.queueMu.Unlock()
}

// --- Lifecycle ---

// Load replaces all state from a persisted document. Clears selection and
// undo history (project switch).
func (ws *Workspace) Load(doc *board.Document) {
	ws.store.ReplaceAll(doc.Objects)
	ws.viewport.CancelAnimation()
	ws.viewport.Offset = doc.View.Offset
	ws.viewport.Zoom = clampZoom(doc.View.Zoom)
	ws.selection.Clear()
	ws.undo = undoStack{}
	ws.render.Sync(ws.store.Snapshot(), ws.assets)
}

// ApplyRemote replaces the object list with authoritative server state (the
// conflict-recovery path). Selection is pruned, not cleared.
func (ws *Workspace) ApplyRemote(objects []board.CanvasObject) {
	snapshot := ws.store.ReplaceAll(objects)
	live := make([]string, len(snapshot))
	for i, o := range snapshot {
		live[i] = o.ID
	}
	ws.selection.Prune(live)
	ws.render.Sync(snapshot, ws.assets)
}

// RegisterAsset records an asset so image objects can resolve their URL and
// native size.
func (ws *Workspace) RegisterAsset(a board.Asset) {
	ws.assets[a.ID] = a
}

// --- Input ---

func (ws *Workspace) PointerDown(screen geom.Point, mods Modifiers) {
	ws.gesture.PointerDown(screen, mods)
}

func (ws *Workspace) PointerMove(screen geom.Point) {
	ws.gesture.PointerMove(screen)
	if ws.gesture.Active() {
		ws.minimap.Poke(ws.clock())
	}
}

func (ws *Workspace) PointerUp(screen geom.Point) {
	ws.gesture.PointerUp(screen)
}

func (ws *Workspace) Wheel(screen geom.Point, deltaY float64, deltaMode int) {
	ws.gesture.Wheel(screen, deltaY, deltaMode)
	ws.minimap.Poke(ws.clock())
}

func (ws *Workspace) DoubleClick(screen geom.Point) {
	ws.gesture.DoubleClick(screen)
}

// --- Operations ---

// DropImage places a new image object centered on the given screen point at
// scale 1, on top of everything else.
func (ws *Workspace) DropImage(screen geom.Point, asset board.Asset) board.CanvasObject {
	ws.RegisterAsset(asset)

	obj := board.CanvasObject{
		ID:       uuid.NewString(),
		Type:     board.ObjectTypeImage,
		AssetID:  asset.ID,
		Position: ws.viewport.ScreenToWorld(screen),
		ScaleX:   1,
		ScaleY:   1,
		NativeSize: &geom.Size{
			Width:  asset.Width,
			Height: asset.Height,
		},
		ZIndex: ws.store.NextZIndex(),
	}
	ws.store.Upsert(obj)
	ws.selection.Replace(obj.ID)
	ws.canvasChanged()
	return obj
}

// FocusObject animates the view to frame the given object.
func (ws *Workspace) FocusObject(id string) {
	obj, ok := ws.store.Get(id)
	if !ok {
		return
	}
	offset, zoom := ws.viewport.FitView(obj.WorldBounds(), ws.opts.FocusPadding)
	ws.animateView(offset, zoom)
}

// ViewportCenter returns the world point at the middle of the screen.
func (ws *Workspace) ViewportCenter() geom.Point {
	return ws.viewport.Center()
}

// View returns the current camera state.
func (ws *Workspace) View() board.ViewState {
	return board.ViewState{Offset: ws.viewport.Offset, Zoom: ws.viewport.Zoom}
}

// Objects returns the current object snapshot.
func (ws *Workspace) Objects() []board.CanvasObject {
	return ws.store.Snapshot()
}

// SelectedIDs returns the selection in stable order.
func (ws *Workspace) SelectedIDs() []string {
	return ws.selection.IDs()
}

// HitTest returns the topmost object id at a screen point, or "".
func (ws *Workspace) HitTest(screen geom.Point) string {
	obj, ok := ws.store.HitTest(ws.viewport.ScreenToWorld(screen))
	if !ok {
		return ""
	}
	return obj.ID
}

// Minimap exposes the projector for the host's minimap drawing.
func (ws *Workspace) Minimap() *Minimap {
	return ws.minimap
}

// Viewport exposes the camera for overlay placement.
func (ws *Workspace) Viewport() *Viewport {
	return ws.viewport
}

// --- Frame loop ---

// Tick runs once per render frame: drains async completions, advances the
// view animation and minimap fade, reconciles visuals, and fires the
// coalesced change callbacks.
func (ws *Workspace) Tick(now time.Time) {
	ws.queueMu.Lock()
	pending := ws.queue
	ws.queue = nil
	ws.queueMu.Unlock()
	for _, fn := range pending {
		fn()
	}

	if ws.viewport.Tick(now) {
		ws.minimap.Poke(now)
	}

	// Keep the projection fresh even while hidden so a click landing right
	// after the map appears maps through current state.
	ws.minimap.Update(ws.viewport.WorldRect(), ws.store.ContentBounds())
	if ws.minimap.Visible() {
		ws.minimap.Alpha(now)
	}

	ws.render.Sync(ws.store.Snapshot(), ws.assets)

	if ws.canvasDirty {
		ws.canvasDirty = false
		if ws.opts.OnCanvasChanged != nil {
			ws.opts.OnCanvasChanged(ws.store.Snapshot())
		}
	}
	if ws.viewDirty {
		ws.viewDirty = false
		if ws.opts.OnViewChanged != nil {
			ws.opts.OnViewChanged(ws.View())
		}
	}
}

// canvasChanged marks the object list dirty; the callback fires once on the
// next Tick.
func (ws *Workspace) canvasChanged() {
	ws.canvasDirty = true
}

func (ws *Workspace) viewChanged() {
	ws.viewDirty = true
}
