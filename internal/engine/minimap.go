package engine

import (
	"time"

	"github.com/driftboard/driftboard/internal/geom"
)

// Minimap timing. The map fades out after idle unless pinned.
const (
	minimapIdleDelay = 1500 * time.Millisecond
	minimapFade      = 300 * time.Millisecond
)

// Minimap projects the whole board into a fixed-size inset panel and maps
// panel-local drags back into world space for navigation.
type Minimap struct {
	panel   geom.Rect // screen-space panel, fixed size
	padFrac float64

	// Current projection, recomputed each frame while visible.
	scale       float64
	worldCenter geom.Point

	shownUntil time.Time
	pinned     bool
}

// NewMinimap creates a projector drawing into the given screen-space panel.
func NewMinimap(panel geom.Rect, padFrac float64) *Minimap {
	return &Minimap{panel: panel, padFrac: padFrac, scale: 1}
}

// Bounds returns the panel rect in screen space.
func (m *Minimap) Bounds() geom.Rect {
	return m.panel
}

// SetPinned toggles pinned mode, which disables auto-hide.
func (m *Minimap) SetPinned(pinned bool) {
	m.pinned = pinned
}

// Pinned reports pinned mode.
func (m *Minimap) Pinned() bool {
	return m.pinned
}

// Poke resets the idle timer; call on any pan/zoom/drag activity.
func (m *Minimap) Poke(now time.Time) {
	m.shownUntil = now.Add(minimapIdleDelay)
}

// Visible reports whether the minimap should be drawn (and hit) right now.
func (m *Minimap) Visible() bool {
	return m.pinned || !m.shownUntil.IsZero()
}

// Alpha returns the draw opacity at the given instant, easing to zero over
// the fade window after the idle delay expires.
func (m *Minimap) Alpha(now time.Time) float64 {
	if m.pinned {
		return 1
	}
	if m.shownUntil.IsZero() {
		return 0
	}
	if now.Before(m.shownUntil) {
		return 1
	}
	t := float64(now.Sub(m.shownUntil)) / float64(minimapFade)
	if t >= 1 {
		m.shownUntil = time.Time{}
		return 0
	}
	return 1 - easeInOut(t)
}

// Update recomputes the world→panel projection from the current viewport and
// content bounds: the union of both, padded proportionally, fit with a single
// uniform scale and centered in the panel.
func (m *Minimap) Update(view geom.Rect, content geom.Rect) {
	union := view.Union(content)
	if union.IsEmpty() {
		return
	}

	pad := m.padFrac * max(union.Width, union.Height)
	union = geom.Rect{
		X:      union.X - pad,
		Y:      union.Y - pad,
		Width:  union.Width + 2*pad,
		Height: union.Height + 2*pad,
	}

	m.scale = min(m.panel.Width/union.Width, m.panel.Height/union.Height)
	m.worldCenter = union.Center()
}

// ToMinimap maps a world point into screen coordinates inside the panel.
func (m *Minimap) ToMinimap(world geom.Point) geom.Point {
	c := m.panel.Center()
	return geom.Point{
		X: c.X + (world.X-m.worldCenter.X)*m.scale,
		Y: c.Y + (world.Y-m.worldCenter.Y)*m.scale,
	}
}

// ToWorld is the inverse mapping, used for drag-to-navigate.
func (m *Minimap) ToWorld(panelPoint geom.Point) geom.Point {
	c := m.panel.Center()
	return geom.Point{
		X: m.worldCenter.X + (panelPoint.X-c.X)/m.scale,
		Y: m.worldCenter.Y + (panelPoint.Y-c.Y)/m.scale,
	}
}

// ProjectRect maps a world rect into the panel (for item thumbnails and the
// viewport outline).
func (m *Minimap) ProjectRect(world geom.Rect) geom.Rect {
	tl := m.ToMinimap(geom.Point{X: world.X, Y: world.Y})
	return geom.Rect{
		X:      tl.X,
		Y:      tl.Y,
		Width:  world.Width * m.scale,
		Height: world.Height * m.scale,
	}
}
