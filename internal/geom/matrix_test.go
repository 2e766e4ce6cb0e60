package geom

import (
	"math"
	"testing"
)

func TestMatrixInvertRoundTrip(t *testing.T) {
	m := Translate(30, -12).Multiply(Rotate(0.7)).Multiply(Scale(2.5, 2.5))
	p := Point{X: 14, Y: -3}

	back := m.Invert().TransformPoint(m.TransformPoint(p))
	if math.Abs(back.X-p.X) > 1e-9 || math.Abs(back.Y-p.Y) > 1e-9 {
		t.Fatalf("round trip gave (%f,%f) want (%f,%f)", back.X, back.Y, p.X, p.Y)
	}
}

func TestFromCardTransform(t *testing.T) {
	// No rotation: local origin maps to position, axes scale independently.
	m := FromCardTransform(Point{X: 100, Y: 50}, 2, 3, 0)

	origin := m.TransformPoint(Point{})
	if origin.X != 100 || origin.Y != 50 {
		t.Fatalf("origin mapped to (%f,%f) want (100,50)", origin.X, origin.Y)
	}

	p := m.TransformPoint(Point{X: 10, Y: 10})
	if p.X != 120 || p.Y != 80 {
		t.Fatalf("(10,10) mapped to (%f,%f) want (120,80)", p.X, p.Y)
	}
}

func TestFromCardTransformRotation(t *testing.T) {
	// Quarter turn: local +X becomes world +Y.
	m := FromCardTransform(Point{}, 1, 1, math.Pi/2)
	p := m.TransformPoint(Point{X: 1, Y: 0})
	if math.Abs(p.X) > 1e-9 || math.Abs(p.Y-1) > 1e-9 {
		t.Fatalf("rotated point (%f,%f) want (0,1)", p.X, p.Y)
	}
}

func TestTransformRectIsAxisAlignedHull(t *testing.T) {
	m := FromCardTransform(Point{}, 1, 1, math.Pi/4)
	r := m.TransformRect(Rect{X: -1, Y: -1, Width: 2, Height: 2})

	// A unit-ish square rotated 45° has a hull of side 2*sqrt(2).
	want := 2 * math.Sqrt2
	if math.Abs(r.Width-want) > 1e-9 || math.Abs(r.Height-want) > 1e-9 {
		t.Fatalf("hull %fx%f want %fx%f", r.Width, r.Height, want, want)
	}
	if math.Abs(r.X+want/2) > 1e-9 || math.Abs(r.Y+want/2) > 1e-9 {
		t.Fatalf("hull origin (%f,%f) want (%f,%f)", r.X, r.Y, -want/2, -want/2)
	}
}

func TestRectUnionWithEmpty(t *testing.T) {
	r := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	got := Rect{}.Union(r)
	if got != r {
		t.Fatalf("empty union gave %+v want %+v", got, r)
	}
	got = r.Union(Rect{})
	if got != r {
		t.Fatalf("union with empty gave %+v want %+v", got, r)
	}
}
