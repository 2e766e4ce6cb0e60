package engine

import (
	"math"
	"time"

	"github.com/driftboard/driftboard/internal/geom"
)

// Zoom limits for the infinite canvas. The camera never leaves this range.
const (
	MinZoom = 0.01
	MaxZoom = 1.0
)

// Wheel delta modes, matching the DOM WheelEvent convention.
const (
	DeltaPixel = 0
	DeltaLine  = 1
	DeltaPage  = 2
)

// Viewport owns the world→screen mapping:
// screenPoint = worldPoint*Zoom + Offset.
type Viewport struct {
	Offset     geom.Point
	Zoom       float64
	ScreenSize geom.Size

	anim *viewAnim
}

type viewAnim struct {
	fromOffset geom.Point
	toOffset   geom.Point
	fromZoom   float64
	toZoom     float64
	start      time.Time
	duration   time.Duration
	done       func()
}

// NewViewport creates a viewport with a sane default camera.
func NewViewport(screen geom.Size) *Viewport {
	return &Viewport{Zoom: 0.25, ScreenSize: screen}
}

// ScreenToWorld inverts the affine map. Used for hit-testing and for keeping
// the cursor's world position fixed during zoom.
func (v *Viewport) ScreenToWorld(p geom.Point) geom.Point {
	return p.Sub(v.Offset).Mul(1 / v.Zoom)
}

// WorldToScreen applies the affine map.
func (v *Viewport) WorldToScreen(p geom.Point) geom.Point {
	return p.Mul(v.Zoom).Add(v.Offset)
}

// WorldRect returns the currently visible region in world space.
func (v *Viewport) WorldRect() geom.Rect {
	tl := v.ScreenToWorld(geom.Point{})
	br := v.ScreenToWorld(geom.Point{X: v.ScreenSize.Width, Y: v.ScreenSize.Height})
	return geom.Rect{X: tl.X, Y: tl.Y, Width: br.X - tl.X, Height: br.Y - tl.Y}
}

// Center returns the world point currently at the middle of the screen.
func (v *Viewport) Center() geom.Point {
	return v.ScreenToWorld(geom.Point{X: v.ScreenSize.Width / 2, Y: v.ScreenSize.Height / 2})
}

// Pan translates the camera by a raw screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.Offset.X += dx
	v.Offset.Y += dy
}

// ZoomAt scales the zoom by factor, then adjusts the offset so the world point
// under the given screen point stays put.
func (v *Viewport) ZoomAt(screen geom.Point, factor float64) {
	if factor == 1 {
		return
	}
	pivot := v.ScreenToWorld(screen)
	v.Zoom = softClampZoom(v.Zoom, v.Zoom*factor)
	// offset = screen - pivot*zoom keeps ScreenToWorld(screen) == pivot exactly
	v.Offset = screen.Sub(pivot.Mul(v.Zoom))
}

// SetZoomKeepingCenter changes zoom while holding the current viewport center
// fixed in world space. Used by the zoom-reset shortcut.
func (v *Viewport) SetZoomKeepingCenter(zoom float64) {
	center := v.Center()
	v.Zoom = clampZoom(zoom)
	screenCenter := geom.Point{X: v.ScreenSize.Width / 2, Y: v.ScreenSize.Height / 2}
	v.Offset = screenCenter.Sub(center.Mul(v.Zoom))
}

// WheelZoomFactor converts a wheel delta into a multiplicative zoom factor,
// normalizing the browser's pixel/line/page delta modes.
func WheelZoomFactor(deltaY float64, deltaMode int) float64 {
	switch deltaMode {
	case DeltaLine:
		deltaY *= 16
	case DeltaPage:
		deltaY *= 100
	}
	const sensitivity = 0.0015
	return math.Exp(-deltaY * sensitivity)
}

// FitView computes the offset and zoom framing the given world rect with a
// padding fraction of the smaller screen dimension.
func (v *Viewport) FitView(world geom.Rect, padFrac float64) (geom.Point, float64) {
	if world.IsEmpty() {
		return v.Offset, v.Zoom
	}
	pad := padFrac * min(v.ScreenSize.Width, v.ScreenSize.Height)
	availW := v.ScreenSize.Width - 2*pad
	availH := v.ScreenSize.Height - 2*pad
	if availW <= 0 || availH <= 0 {
		return v.Offset, v.Zoom
	}

	zoom := clampZoom(min(availW/world.Width, availH/world.Height))
	c := world.Center()
	offset := geom.Point{
		X: v.ScreenSize.Width/2 - c.X*zoom,
		Y: v.ScreenSize.Height/2 - c.Y*zoom,
	}
	return offset, zoom
}

// AnimateTo starts an eased transition to the target camera. A new request
// cancels any in-progress animation; done fires on natural completion only.
func (v *Viewport) AnimateTo(offset geom.Point, zoom float64, duration time.Duration, now time.Time, done func()) {
	zoom = clampZoom(zoom)
	if duration <= 0 {
		v.Offset = offset
		v.Zoom = zoom
		v.anim = nil
		if done != nil {
			done()
		}
		return
	}
	v.anim = &viewAnim{
		fromOffset: v.Offset,
		toOffset:   offset,
		fromZoom:   v.Zoom,
		toZoom:     zoom,
		start:      now,
		duration:   duration,
		done:       done,
	}
}

// CancelAnimation discards any in-progress transition without firing done.
func (v *Viewport) CancelAnimation() {
	v.anim = nil
}

// Animating reports whether a view transition is in progress.
func (v *Viewport) Animating() bool {
	return v.anim != nil
}

// Tick advances the current animation using wall-clock time so behavior is
// consistent across refresh rates. Returns true while animating.
func (v *Viewport) Tick(now time.Time) bool {
	a := v.anim
	if a == nil {
		return false
	}

	t := float64(now.Sub(a.start)) / float64(a.duration)
	if t >= 1 {
		v.Offset = a.toOffset
		v.Zoom = a.toZoom
		v.anim = nil
		if a.done != nil {
			a.done()
		}
		return false
	}
	if t < 0 {
		t = 0
	}

	e := easeInOut(t)
	v.Offset = geom.Point{
		X: a.fromOffset.X + (a.toOffset.X-a.fromOffset.X)*e,
		Y: a.fromOffset.Y + (a.toOffset.Y-a.fromOffset.Y)*e,
	}
	v.Zoom = a.fromZoom + (a.toZoom-a.fromZoom)*e
	return true
}

func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t)
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// softClampZoom moves from current toward target, damping the step inside an
// edge band of the log-zoom range so the boundary feels like resistance
// rather than a hard wall. Steps away from a boundary are never damped, and
// a zero step returns current unchanged.
func softClampZoom(current, target float64) float64 {
	const edgeBand = 0.12

	lo := math.Log(MinZoom)
	hi := math.Log(MaxZoom)
	cur := math.Log(clampZoom(current))
	step := math.Log(target) - cur
	if step == 0 {
		return clampZoom(current)
	}

	// Remaining headroom toward the boundary the step moves at, as a
	// fraction of the log-zoom range.
	var room float64
	if step < 0 {
		room = (cur - lo) / (hi - lo)
	} else {
		room = (hi - cur) / (hi - lo)
	}
	if room < edgeBand {
		u := room / edgeBand
		step *= u * u * (3 - 2*u)
	}

	return clampZoom(math.Exp(cur + step))
}
