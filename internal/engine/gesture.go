package engine

import (
	"math"
	"time"

	"github.com/driftboard/driftboard/internal/geom"
)

// Corner identifies a resize handle on the singly-selected object.
type Corner int

const (
	CornerTopLeft Corner = iota
	CornerTopRight
	CornerBottomRight
	CornerBottomLeft
)

// Opposite returns the diagonally opposite corner, which anchors a resize.
func (c Corner) Opposite() Corner {
	return (c + 2) % 4
}

// localOffset returns the corner's unscaled local-space offset for a
// center-origin rect of the given size.
func (c Corner) localOffset(w, h float64) geom.Point {
	switch c {
	case CornerTopLeft:
		return geom.Point{X: -w / 2, Y: -h / 2}
	case CornerTopRight:
		return geom.Point{X: w / 2, Y: -h / 2}
	case CornerBottomRight:
		return geom.Point{X: w / 2, Y: h / 2}
	default:
		return geom.Point{X: -w / 2, Y: h / 2}
	}
}

// Modifiers carries the keyboard state accompanying a pointer event.
type Modifiers struct {
	Shift bool
}

type gestureKind int

const (
	gestureIdle gestureKind = iota
	gesturePanning
	gestureMoving
	gestureResizing
	gestureMinimap
)

type resizeState struct {
	id         string
	corner     Corner
	fixedWorld geom.Point // world position of the anchored corner, held fixed
	fixedLocal geom.Point // unscaled local offset of the anchored corner
	dragLocal  geom.Point // unscaled local offset of the dragged corner
	rotation   float64
}

// GestureController interprets pointer and wheel sequences into exactly one
// active gesture at a time. All methods run on the workspace goroutine.
type GestureController struct {
	ws *Workspace

	kind        gestureKind
	lastScreen  geom.Point
	startScreen geom.Point
	moveIDs     []string
	resize      resizeState
	moved       bool
}

func newGestureController(ws *Workspace) *GestureController {
	return &GestureController{ws: ws}
}

// Active reports whether a gesture other than idle is in progress.
func (g *GestureController) Active() bool {
	return g.kind != gestureIdle
}

// Screen-space radius within which a pointer grabs a resize handle.
const handleHitRadius = 12.0

// Minimap drags shorter than this are treated as clicks.
const minimapClickThreshold = 4.0

// PointerDown resolves the pointer target and enters the matching gesture.
// Resolution order: minimap, resize handle, object, background.
func (g *GestureController) PointerDown(screen geom.Point, mods Modifiers) {
	if g.kind != gestureIdle {
		return
	}
	g.startScreen = screen
	g.lastScreen = screen
	g.moved = false

	// (a) minimap drag
	if g.ws.minimap.Visible() && g.ws.minimap.Bounds().Contains(screen.X, screen.Y) {
		// The projection may not have been refreshed since the map appeared.
		g.ws.minimap.Update(g.ws.viewport.WorldRect(), g.ws.store.ContentBounds())
		g.kind = gestureMinimap
		return
	}

	// (b) resize handle on the singly-selected object
	if id, ok := g.ws.selection.Single(); ok {
		if corner, ok := g.hitHandle(id, screen); ok {
			g.beginResize(id, corner)
			return
		}
	}

	// (c) object hit: update selection, raise it, start moving
	world := g.ws.viewport.ScreenToWorld(screen)
	if obj, ok := g.ws.store.HitTest(world); ok {
		switch {
		case mods.Shift:
			g.ws.selection.Toggle(obj.ID)
		case g.ws.selection.Has(obj.ID) && g.ws.selection.Len() > 1:
			// Clicking inside an existing multi-selection keeps the group.
		default:
			g.ws.selection.Replace(obj.ID)
		}
		if g.ws.selection.Len() == 0 {
			g.kind = gestureIdle
			return
		}
		g.ws.store.BringToFront(g.ws.selection.IDs())
		g.ws.canvasChanged()
		g.moveIDs = g.ws.selection.IDs()
		g.kind = gestureMoving
		return
	}

	// (d) background: clear selection (shift keeps it) and pan
	if !mods.Shift {
		g.ws.selection.Clear()
	}
	g.kind = gesturePanning
}

// PointerMove advances the active gesture.
func (g *GestureController) PointerMove(screen geom.Point) {
	delta := screen.Sub(g.lastScreen)
	if delta.X != 0 || delta.Y != 0 {
		g.moved = true
	}

	switch g.kind {
	case gesturePanning:
		// Pan is screen-space: no zoom division.
		g.ws.viewport.Pan(delta.X, delta.Y)
		g.ws.viewChanged()

	case gestureMoving:
		// Dividing by zoom keeps the drag 1:1 with the pointer at any zoom.
		worldDelta := delta.Mul(1 / g.ws.viewport.Zoom)
		g.ws.store.Translate(g.moveIDs, worldDelta)
		g.ws.canvasChanged()

	case gestureResizing:
		g.applyResize(screen)

	case gestureMinimap:
		// Nothing to apply until release; the drag rectangle is
		// derived from start/last on pointer-up.
	}

	g.lastScreen = screen
}

// PointerUp completes the active gesture and returns to idle.
func (g *GestureController) PointerUp(screen geom.Point) {
	kind := g.kind
	g.kind = gestureIdle
	g.moveIDs = nil

	if kind == gestureMinimap {
		g.finishMinimapDrag(screen)
	}
}

// Wheel applies an anchor-preserving zoom at the pointer position.
func (g *GestureController) Wheel(screen geom.Point, deltaY float64, deltaMode int) {
	if g.kind != gestureIdle {
		return
	}
	g.ws.viewport.CancelAnimation()
	g.ws.viewport.ZoomAt(screen, WheelZoomFactor(deltaY, deltaMode))
	g.ws.viewChanged()
}

// DoubleClick zooms in on an image when the view is far out, or opens the
// full-detail viewer, reporting the on-screen origin rect for the host's
// open transition.
func (g *GestureController) DoubleClick(screen geom.Point) {
	world := g.ws.viewport.ScreenToWorld(screen)
	obj, ok := g.ws.store.HitTest(world)
	if !ok {
		return
	}

	_, fitZoom := g.ws.viewport.FitView(obj.WorldBounds(), g.ws.opts.FocusPadding)
	if g.ws.viewport.Zoom < g.ws.opts.DoubleClickZoomFraction*fitZoom {
		g.ws.FocusObject(obj.ID)
		return
	}

	if g.ws.opts.OpenViewer != nil {
		tl := g.ws.viewport.WorldToScreen(geom.Point{X: obj.WorldBounds().X, Y: obj.WorldBounds().Y})
		size := obj.WorldSize()
		origin := geom.Rect{
			X:      tl.X,
			Y:      tl.Y,
			Width:  size.Width * g.ws.viewport.Zoom,
			Height: size.Height * g.ws.viewport.Zoom,
		}
		g.ws.opts.OpenViewer(obj.ID, origin)
	}
}

// hitHandle checks whether the pointer is on one of the object's corner
// handles, in screen space.
func (g *GestureController) hitHandle(id string, screen geom.Point) (Corner, bool) {
	obj, ok := g.ws.store.Get(id)
	if !ok {
		return 0, false
	}
	local := obj.LocalBounds()
	m := obj.WorldMatrix()
	for _, c := range []Corner{CornerTopLeft, CornerTopRight, CornerBottomRight, CornerBottomLeft} {
		corner := m.TransformPoint(c.localOffset(local.Width, local.Height))
		s := g.ws.viewport.WorldToScreen(corner)
		if math.Hypot(s.X-screen.X, s.Y-screen.Y) <= handleHitRadius {
			return c, true
		}
	}
	return 0, false
}

func (g *GestureController) beginResize(id string, corner Corner) {
	obj, ok := g.ws.store.Get(id)
	if !ok {
		return
	}
	local := obj.LocalBounds()
	opp := corner.Opposite()
	fixedLocal := opp.localOffset(local.Width, local.Height)

	g.resize = resizeState{
		id:         id,
		corner:     corner,
		fixedWorld: obj.WorldMatrix().TransformPoint(fixedLocal),
		fixedLocal: fixedLocal,
		dragLocal:  corner.localOffset(local.Width, local.Height),
		rotation:   obj.Rotation,
	}
	g.kind = gestureResizing
}

// applyResize recomputes a uniform scale from the pointer position, holding
// the opposite corner stationary. Aspect ratio is always preserved: the
// larger of the per-axis ratios wins.
func (g *GestureController) applyResize(screen geom.Point) {
	obj, ok := g.ws.store.Get(g.resize.id)
	if !ok {
		// Deleted mid-gesture; drop back to idle.
		g.kind = gestureIdle
		return
	}

	world := g.ws.viewport.ScreenToWorld(screen)
	delta := world.Sub(g.resize.fixedWorld)

	// Measure the drag in the object's unrotated frame.
	unrot := geom.Rotate(-g.resize.rotation).TransformPoint(delta)
	axis := g.resize.dragLocal.Sub(g.resize.fixedLocal)

	scale := math.Max(math.Abs(unrot.X/axis.X), math.Abs(unrot.Y/axis.Y))
	if scale < MinScale {
		scale = MinScale
	}

	// position = fixedWorld - R(rotation) * (scale * fixedLocal) keeps the
	// anchored corner exactly where it was.
	anchored := geom.Rotate(g.resize.rotation).TransformPoint(g.resize.fixedLocal.Mul(scale))
	obj.ScaleX = scale
	obj.ScaleY = scale
	obj.Position = g.resize.fixedWorld.Sub(anchored)

	g.ws.store.Upsert(obj)
	g.ws.canvasChanged()
}

// finishMinimapDrag interprets the completed minimap gesture: a short drag
// re-centers on the clicked world point; a longer one frames the dragged
// rectangle.
func (g *GestureController) finishMinimapDrag(screen geom.Point) {
	mm := g.ws.minimap
	dist := math.Hypot(screen.X-g.startScreen.X, screen.Y-g.startScreen.Y)

	if dist < minimapClickThreshold {
		target := mm.ToWorld(g.startScreen)
		offset := geom.Point{
			X: g.ws.viewport.ScreenSize.Width/2 - target.X*g.ws.viewport.Zoom,
			Y: g.ws.viewport.ScreenSize.Height/2 - target.Y*g.ws.viewport.Zoom,
		}
		g.ws.animateView(offset, g.ws.viewport.Zoom)
		return
	}

	a := mm.ToWorld(g.startScreen)
	b := mm.ToWorld(screen)
	rect := geom.Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
	offset, zoom := g.ws.viewport.FitView(rect, g.ws.opts.FocusPadding)
	g.ws.animateView(offset, zoom)
}

// animateView is a small helper so every gesture-triggered transition uses the
// same duration and persists the view on completion.
func (ws *Workspace) animateView(offset geom.Point, zoom float64) {
	ws.viewport.AnimateTo(offset, zoom, ws.opts.ViewAnimDuration, ws.clock(), func() {
		ws.viewChanged()
	})
}

// DefaultViewAnimDuration is how long gesture-triggered camera transitions
// take.
const DefaultViewAnimDuration = 350 * time.Millisecond
