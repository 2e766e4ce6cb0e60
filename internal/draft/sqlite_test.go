package draft

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/bridge"
	"github.com/driftboard/driftboard/internal/geom"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadMissingDraft(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Read("proj_none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := &bridge.Draft{
		Objects: []board.CanvasObject{{
			ID:       "obj1",
			Type:     board.ObjectTypeImage,
			Position: geom.Point{X: 12, Y: -7},
			ScaleX:   2,
			ScaleY:   2,
			ZIndex:   3,
		}},
		View:        board.ViewState{Offset: geom.Point{X: 40, Y: 50}, Zoom: 0.5},
		DirtyCanvas: true,
		CanvasRev:   7,
		ViewRev:     2,
		SavedAt:     time.Now(),
	}
	if err := s.Write("proj_1", in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := s.Read("proj_1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.Objects) != 1 || out.Objects[0].ID != "obj1" {
		t.Fatalf("objects %v want [obj1]", out.Objects)
	}
	if out.View.Zoom != 0.5 || !out.DirtyCanvas || out.CanvasRev != 7 || out.ViewRev != 2 {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestWriteOverwrites(t *testing.T) {
	s := openTestStore(t)

	for rev := int64(1); rev <= 3; rev++ {
		if err := s.Write("proj_1", &bridge.Draft{CanvasRev: rev}); err != nil {
			t.Fatalf("write rev %d: %v", rev, err)
		}
	}

	out, err := s.Read("proj_1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.CanvasRev != 3 {
		t.Fatalf("rev=%d want 3 (last write wins)", out.CanvasRev)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.Write("proj_1", &bridge.Draft{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Delete("proj_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Read("proj_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound after delete", err)
	}
}
