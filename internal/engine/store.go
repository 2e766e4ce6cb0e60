package engine

import (
	"slices"
	"sort"
	"time"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/geom"
)

// MinScale is the floor for object scale. Prevents degenerate or inverted
// geometry during resize.
const MinScale = 0.01

// ObjectStore is the in-memory source of truth for the board's objects during
// a session. Every mutation returns the new full snapshot so callers can diff
// cheaply and schedule persistence exactly once per logical change.
type ObjectStore struct {
	objects []board.CanvasObject
	now     func() time.Time
}

// NewObjectStore creates an empty store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{now: time.Now}
}

// Snapshot returns a copy of the current object list in insertion order.
func (s *ObjectStore) Snapshot() []board.CanvasObject {
	return slices.Clone(s.objects)
}

// Len returns the number of objects.
func (s *ObjectStore) Len() int {
	return len(s.objects)
}

// Get returns the object with the given id.
func (s *ObjectStore) Get(id string) (board.CanvasObject, bool) {
	for _, o := range s.objects {
		if o.ID == id {
			return o, true
		}
	}
	return board.CanvasObject{}, false
}

// NextZIndex returns the z-index a newly dropped object should get.
func (s *ObjectStore) NextZIndex() int {
	maxZ := 0
	for _, o := range s.objects {
		if o.ZIndex > maxZ {
			maxZ = o.ZIndex
		}
	}
	return maxZ + 1
}

// ReplaceAll swaps in a whole new object list. Used on project load and on
// server resync after a revision conflict.
func (s *ObjectStore) ReplaceAll(objects []board.CanvasObject) []board.CanvasObject {
	s.objects = slices.Clone(objects)
	return s.Snapshot()
}

// Upsert inserts or replaces one object, bumping its updatedAt.
func (s *ObjectStore) Upsert(obj board.CanvasObject) []board.CanvasObject {
	obj.UpdatedAt = s.now()
	for i, o := range s.objects {
		if o.ID == obj.ID {
			s.objects[i] = obj
			return s.Snapshot()
		}
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = obj.UpdatedAt
	}
	s.objects = append(s.objects, obj)
	return s.Snapshot()
}

// Remove deletes the given ids. Unknown ids are ignored.
func (s *ObjectStore) Remove(ids []string) []board.CanvasObject {
	kept := s.objects[:0]
	for _, o := range s.objects {
		if !slices.Contains(ids, o.ID) {
			kept = append(kept, o)
		}
	}
	s.objects = kept
	return s.Snapshot()
}

// Translate moves every listed object by the same world-space delta.
func (s *ObjectStore) Translate(ids []string, delta geom.Point) []board.CanvasObject {
	now := s.now()
	for i := range s.objects {
		if slices.Contains(ids, s.objects[i].ID) {
			s.objects[i].Position = s.objects[i].Position.Add(delta)
			s.objects[i].UpdatedAt = now
		}
	}
	return s.Snapshot()
}

// BringToFront raises the given ids above everything else. Objects are sorted
// by (zIndex, id), partitioned into unselected-then-selected keeping each
// partition's order, and reassigned dense z-indexes. Only entries whose index
// actually changed get a new updatedAt, so an already-front selection is a
// no-op.
func (s *ObjectStore) BringToFront(ids []string) []board.CanvasObject {
	if len(ids) == 0 || len(s.objects) == 0 {
		return s.Snapshot()
	}

	ordered := slices.Clone(s.objects)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ZIndex != ordered[j].ZIndex {
			return ordered[i].ZIndex < ordered[j].ZIndex
		}
		return ordered[i].ID < ordered[j].ID
	})

	rest := make([]board.CanvasObject, 0, len(ordered))
	selected := make([]board.CanvasObject, 0, len(ids))
	for _, o := range ordered {
		if slices.Contains(ids, o.ID) {
			selected = append(selected, o)
		} else {
			rest = append(rest, o)
		}
	}
	ordered = append(rest, selected...)

	now := s.now()
	byID := make(map[string]board.CanvasObject, len(ordered))
	for i := range ordered {
		want := i + 1
		if ordered[i].ZIndex != want {
			ordered[i].ZIndex = want
			ordered[i].UpdatedAt = now
		}
		byID[ordered[i].ID] = ordered[i]
	}

	// Keep insertion order of the backing slice; only z-indexes change.
	for i := range s.objects {
		s.objects[i] = byID[s.objects[i].ID]
	}
	return s.Snapshot()
}

// SortedByZ returns the objects in paint order, ties broken by id for
// determinism.
func (s *ObjectStore) SortedByZ() []board.CanvasObject {
	out := slices.Clone(s.objects)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ContentBounds returns the union of all object bounds in world space.
func (s *ObjectStore) ContentBounds() geom.Rect {
	var bounds geom.Rect
	for _, o := range s.objects {
		bounds = bounds.Union(o.WorldBounds())
	}
	return bounds
}

// HitTest returns the topmost object containing the world point, or false.
func (s *ObjectStore) HitTest(world geom.Point) (board.CanvasObject, bool) {
	byZ := s.SortedByZ()
	for i := len(byZ) - 1; i >= 0; i-- {
		// Hit-test in local space so rotated objects test their true shape,
		// not the world-space bounding box.
		local := byZ[i].WorldMatrix().Invert().TransformPoint(world)
		if byZ[i].LocalBounds().Contains(local.X, local.Y) {
			return byZ[i], true
		}
	}
	return board.CanvasObject{}, false
}
