// Package boardstore defines server-side persistence for projects, canvases,
// views, assets, and users.
package boardstore

import (
	"context"
	"errors"

	"github.com/driftboard/driftboard/internal/board"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("stale revision")
	ErrEmailTaken = errors.New("email already registered")
)

// User is a registered account.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"displayName"`
}

// Store is the full persistence surface the server needs. Canvas and view
// writes are guarded by optimistic concurrency: a Put with a stale base
// revision returns ErrConflict.
type Store interface {
	CreateProject(ctx context.Context, p board.Project) error
	GetProject(ctx context.Context, id string) (board.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]board.Project, error)
	DeleteProject(ctx context.Context, id string) error

	GetCanvas(ctx context.Context, projectID string) ([]board.CanvasObject, int64, error)
	PutCanvas(ctx context.Context, projectID string, objects []board.CanvasObject, baseRev int64) (int64, error)
	GetView(ctx context.Context, projectID string) (board.ViewState, int64, error)
	PutView(ctx context.Context, projectID string, view board.ViewState, baseRev int64) (int64, error)

	CreateAsset(ctx context.Context, a board.Asset) error
	GetAsset(ctx context.Context, id string) (board.Asset, error)
	SetAssetDeleted(ctx context.Context, id string, deleted bool) error

	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}
