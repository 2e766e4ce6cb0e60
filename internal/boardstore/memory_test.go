package boardstore

import (
	"context"
	"errors"
	"testing"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/geom"
)

func seedProject(t *testing.T, s *MemoryStore) string {
	t.Helper()
	p := board.Project{ID: "proj_1", Name: "Board", OwnerID: "user_1"}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p.ID
}

func TestNewProjectStartsAtRevOne(t *testing.T) {
	s := NewMemory()
	id := seedProject(t, s)

	objects, rev, err := s.GetCanvas(context.Background(), id)
	if err != nil {
		t.Fatalf("get canvas: %v", err)
	}
	if rev != 1 || len(objects) != 0 {
		t.Fatalf("rev=%d objects=%v want empty at rev 1", rev, objects)
	}

	view, rev, err := s.GetView(context.Background(), id)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if rev != 1 || view.Zoom != 0.25 {
		t.Fatalf("rev=%d zoom=%f want rev 1 zoom 0.25", rev, view.Zoom)
	}
}

func TestPutCanvasRevisionGuard(t *testing.T) {
	s := NewMemory()
	id := seedProject(t, s)
	ctx := context.Background()

	rev, err := s.PutCanvas(ctx, id, []board.CanvasObject{{ID: "a"}}, 1)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rev != 2 {
		t.Fatalf("rev=%d want 2", rev)
	}

	// A second writer holding the old base rev must conflict.
	if _, err := s.PutCanvas(ctx, id, []board.CanvasObject{{ID: "b"}}, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("err=%v want ErrConflict", err)
	}

	// The conflicting write must not have replaced the content.
	objects, rev, _ := s.GetCanvas(ctx, id)
	if rev != 2 || len(objects) != 1 || objects[0].ID != "a" {
		t.Fatalf("rev=%d objects=%v want [a] at rev 2", rev, objects)
	}
}

func TestPutViewRevisionGuard(t *testing.T) {
	s := NewMemory()
	id := seedProject(t, s)
	ctx := context.Background()

	v := board.ViewState{Offset: geom.Point{X: 10}, Zoom: 0.5}
	if _, err := s.PutView(ctx, id, v, 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.PutView(ctx, id, v, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("err=%v want ErrConflict", err)
	}
}

func TestPutOnMissingProject(t *testing.T) {
	s := NewMemory()
	if _, err := s.PutCanvas(context.Background(), "proj_ghost", nil, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestDeleteProjectRemovesCanvasAndView(t *testing.T) {
	s := NewMemory()
	id := seedProject(t, s)
	ctx := context.Background()

	if err := s.DeleteProject(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.GetCanvas(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("canvas err=%v want ErrNotFound", err)
	}
	if _, _, err := s.GetView(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("view err=%v want ErrNotFound", err)
	}
}

func TestAssetSoftDeleteAndRestore(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	a := board.Asset{ID: "asset_1", URL: "/assets/asset_1.png", Name: "photo.png", Width: 640, Height: 480}
	if err := s.CreateAsset(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.SetAssetDeleted(ctx, "asset_1", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.GetAsset(ctx, "asset_1")
	if !got.Deleted {
		t.Fatal("asset not marked deleted")
	}

	if err := s.SetAssetDeleted(ctx, "asset_1", false); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ = s.GetAsset(ctx, "asset_1")
	if got.Deleted {
		t.Fatal("asset still deleted after restore")
	}
}

func TestCreateUserEmailTaken(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	u := User{ID: "user_1", Email: "a@example.com", PasswordHash: "x", DisplayName: "A"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := User{ID: "user_2", Email: "a@example.com", PasswordHash: "y", DisplayName: "B"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err=%v want ErrEmailTaken", err)
	}

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil || got.ID != "user_1" {
		t.Fatalf("got %+v err=%v want user_1", got, err)
	}
}
