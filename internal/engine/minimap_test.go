package engine

import (
	"math"
	"testing"
	"time"

	"github.com/driftboard/driftboard/internal/geom"
)

func testMinimap() *Minimap {
	m := NewMinimap(geom.Rect{X: 984, Y: 644, Width: 200, Height: 140}, 0.05)
	m.Update(
		geom.Rect{X: -500, Y: -500, Width: 1000, Height: 1000},
		geom.Rect{X: 0, Y: 0, Width: 3000, Height: 800},
	)
	return m
}

func TestMinimapRoundTrip(t *testing.T) {
	m := testMinimap()

	for _, world := range []geom.Point{{X: 0, Y: 0}, {X: 2500, Y: 300}, {X: -400, Y: -400}} {
		panel := m.ToMinimap(world)
		back := m.ToWorld(panel)
		if math.Abs(back.X-world.X) > 1e-6 || math.Abs(back.Y-world.Y) > 1e-6 {
			t.Fatalf("round trip (%f,%f) -> (%f,%f)", world.X, world.Y, back.X, back.Y)
		}
	}
}

func TestMinimapFitsUnionInPanel(t *testing.T) {
	m := testMinimap()

	// Panel center maps back to the padded union's center; every corner of
	// the unpadded union must project inside the panel.
	for _, world := range []geom.Point{{X: -500, Y: -500}, {X: 3000, Y: 800}} {
		p := m.ToMinimap(world)
		if !m.Bounds().Contains(p.X, p.Y) {
			t.Fatalf("world corner (%f,%f) projected outside panel at (%f,%f)",
				world.X, world.Y, p.X, p.Y)
		}
	}
}

func TestMinimapProjectRect(t *testing.T) {
	m := testMinimap()

	world := geom.Rect{X: 100, Y: 100, Width: 200, Height: 100}
	got := m.ProjectRect(world)

	tl := m.ToMinimap(geom.Point{X: 100, Y: 100})
	if math.Abs(got.X-tl.X) > 1e-9 || math.Abs(got.Y-tl.Y) > 1e-9 {
		t.Fatalf("rect origin (%f,%f) want (%f,%f)", got.X, got.Y, tl.X, tl.Y)
	}
	if got.Width <= 0 || math.Abs(got.Width/got.Height-2) > 1e-9 {
		t.Fatalf("aspect ratio lost: %fx%f", got.Width, got.Height)
	}
}

func TestMinimapVisibilityLifecycle(t *testing.T) {
	m := NewMinimap(geom.Rect{X: 0, Y: 0, Width: 200, Height: 140}, 0.05)
	now := time.Unix(100, 0)

	if m.Visible() {
		t.Fatal("visible before any activity")
	}

	m.Poke(now)
	if !m.Visible() {
		t.Fatal("not visible right after activity")
	}
	if a := m.Alpha(now); a != 1 {
		t.Fatalf("alpha=%f want 1 while active", a)
	}

	// Mid-fade: alpha strictly between 0 and 1.
	mid := now.Add(minimapIdleDelay + minimapFade/2)
	if a := m.Alpha(mid); a <= 0 || a >= 1 {
		t.Fatalf("alpha=%f want in (0,1) mid-fade", a)
	}

	// After the fade the map hides until the next poke.
	end := now.Add(minimapIdleDelay + minimapFade + time.Millisecond)
	if a := m.Alpha(end); a != 0 {
		t.Fatalf("alpha=%f want 0 after fade", a)
	}
	if m.Visible() {
		t.Fatal("still visible after fade completed")
	}
}

func TestMinimapPinnedNeverFades(t *testing.T) {
	m := NewMinimap(geom.Rect{X: 0, Y: 0, Width: 200, Height: 140}, 0.05)
	m.SetPinned(true)

	if !m.Visible() {
		t.Fatal("pinned map not visible")
	}
	if a := m.Alpha(time.Now().Add(time.Hour)); a != 1 {
		t.Fatalf("pinned alpha=%f want 1", a)
	}
}
