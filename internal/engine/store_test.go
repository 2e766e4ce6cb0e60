package engine

import (
	"math"
	"testing"
	"time"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/geom"
)

func testStore(objs ...board.CanvasObject) *ObjectStore {
	s := NewObjectStore()
	s.now = func() time.Time { return time.Unix(1000, 0) }
	for _, o := range objs {
		s.Upsert(o)
	}
	return s
}

func img(id string, x, y float64, z int) board.CanvasObject {
	return board.CanvasObject{
		ID:         id,
		Type:       board.ObjectTypeImage,
		Position:   geom.Point{X: x, Y: y},
		ScaleX:     1,
		ScaleY:     1,
		NativeSize: &geom.Size{Width: 100, Height: 100},
		ZIndex:     z,
	}
}

func zIndexes(s *ObjectStore) map[string]int {
	out := make(map[string]int)
	for _, o := range s.Snapshot() {
		out[o.ID] = o.ZIndex
	}
	return out
}

func TestBringToFrontRaisesSelection(t *testing.T) {
	s := testStore(img("a", 0, 0, 1), img("b", 0, 0, 2), img("c", 0, 0, 3))

	s.BringToFront([]string{"a"})

	z := zIndexes(s)
	if z["b"] != 1 || z["c"] != 2 || z["a"] != 3 {
		t.Fatalf("z-indexes %v want b=1 c=2 a=3", z)
	}
}

func TestBringToFrontDenseAfterGaps(t *testing.T) {
	s := testStore(img("a", 0, 0, 4), img("b", 0, 0, 17), img("c", 0, 0, 99))

	s.BringToFront([]string{"b"})

	z := zIndexes(s)
	if z["a"] != 1 || z["c"] != 2 || z["b"] != 3 {
		t.Fatalf("z-indexes %v want a=1 c=2 b=3", z)
	}
}

func TestBringToFrontIdempotent(t *testing.T) {
	s := testStore(img("a", 0, 0, 1), img("b", 0, 0, 2))

	s.BringToFront([]string{"b"})
	first := zIndexes(s)
	s.BringToFront([]string{"b"})
	second := zIndexes(s)

	if first["a"] != second["a"] || first["b"] != second["b"] {
		t.Fatalf("second call changed z-indexes: %v -> %v", first, second)
	}
}

func TestBringToFrontMultiKeepsRelativeOrder(t *testing.T) {
	s := testStore(img("a", 0, 0, 1), img("b", 0, 0, 2), img("c", 0, 0, 3), img("d", 0, 0, 4))

	s.BringToFront([]string{"a", "c"})

	z := zIndexes(s)
	if z["b"] != 1 || z["d"] != 2 || z["a"] != 3 || z["c"] != 4 {
		t.Fatalf("z-indexes %v want b=1 d=2 a=3 c=4", z)
	}
}

func TestNextZIndexOnEmptyBoard(t *testing.T) {
	s := testStore()
	if got := s.NextZIndex(); got != 1 {
		t.Fatalf("NextZIndex on empty board = %d, want 1", got)
	}
}

func TestHitTestTopmostWins(t *testing.T) {
	// Two overlapping objects; the higher z-index must win.
	s := testStore(img("below", 0, 0, 1), img("above", 20, 20, 2))

	obj, ok := s.HitTest(geom.Point{X: 25, Y: 25})
	if !ok || obj.ID != "above" {
		t.Fatalf("hit %q ok=%v, want above", obj.ID, ok)
	}

	obj, ok = s.HitTest(geom.Point{X: -40, Y: -40})
	if !ok || obj.ID != "below" {
		t.Fatalf("hit %q ok=%v, want below", obj.ID, ok)
	}

	if _, ok := s.HitTest(geom.Point{X: 500, Y: 500}); ok {
		t.Fatal("hit reported on empty space")
	}
}

func TestHitTestRotatedObject(t *testing.T) {
	// 100x100 object rotated 45°. The world-space AABB corner is inside the
	// hull but outside the true shape; it must miss.
	o := img("r", 0, 0, 1)
	o.Rotation = math.Pi / 4
	s := testStore(o)

	if _, ok := s.HitTest(geom.Point{X: 65, Y: 65}); ok {
		t.Fatal("corner outside the rotated shape reported as hit")
	}
	if _, ok := s.HitTest(geom.Point{X: 0, Y: 69}); !ok {
		t.Fatal("point inside the rotated shape reported as miss")
	}
}

func TestTranslateMovesOnlyListed(t *testing.T) {
	s := testStore(img("a", 0, 0, 1), img("b", 10, 10, 2))

	s.Translate([]string{"a"}, geom.Point{X: 5, Y: -5})

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	if a.Position.X != 5 || a.Position.Y != -5 {
		t.Fatalf("a at (%f,%f) want (5,-5)", a.Position.X, a.Position.Y)
	}
	if b.Position.X != 10 || b.Position.Y != 10 {
		t.Fatalf("b moved to (%f,%f)", b.Position.X, b.Position.Y)
	}
}

func TestContentBounds(t *testing.T) {
	s := testStore(img("a", 0, 0, 1), img("b", 200, 0, 2))

	got := s.ContentBounds()
	want := geom.Rect{X: -50, Y: -50, Width: 300, Height: 100}
	if got != want {
		t.Fatalf("bounds %+v want %+v", got, want)
	}
}

func TestRemoveIgnoresUnknown(t *testing.T) {
	s := testStore(img("a", 0, 0, 1))
	s.Remove([]string{"a", "ghost"})
	if s.Len() != 0 {
		t.Fatalf("len=%d want 0", s.Len())
	}
}
