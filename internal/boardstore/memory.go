package boardstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/driftboard/driftboard/internal/board"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]board.Project
	canvases map[string]*revisioned[[]board.CanvasObject]
	views    map[string]*revisioned[board.ViewState]
	assets   map[string]board.Asset
	users    map[string]User
}

type revisioned[T any] struct {
	value T
	rev   int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]board.Project),
		canvases: make(map[string]*revisioned[[]board.CanvasObject]),
		views:    make(map[string]*revisioned[board.ViewState]),
		assets:   make(map[string]board.Asset),
		users:    make(map[string]User),
	}
}

func (s *MemoryStore) CreateProject(_ context.Context, p board.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = p
	s.canvases[p.ID] = &revisioned[[]board.CanvasObject]{value: nil, rev: 1}
	s.views[p.ID] = &revisioned[board.ViewState]{value: board.ViewState{Zoom: 0.25}, rev: 1}
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (board.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return board.Project{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListProjects(_ context.Context, ownerID string) ([]board.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []board.Project
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b board.Project) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	delete(s.canvases, id)
	delete(s.views, id)
	return nil
}

func (s *MemoryStore) GetCanvas(_ context.Context, projectID string) ([]board.CanvasObject, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.canvases[projectID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return slices.Clone(c.value), c.rev, nil
}

func (s *MemoryStore) PutCanvas(_ context.Context, projectID string, objects []board.CanvasObject, baseRev int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.canvases[projectID]
	if !ok {
		return 0, ErrNotFound
	}
	if c.rev != baseRev {
		return 0, ErrConflict
	}
	c.value = slices.Clone(objects)
	c.rev++
	return c.rev, nil
}

func (s *MemoryStore) GetView(_ context.Context, projectID string) (board.ViewState, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[projectID]
	if !ok {
		return board.ViewState{}, 0, ErrNotFound
	}
	return v.value, v.rev, nil
}

func (s *MemoryStore) PutView(_ context.Context, projectID string, view board.ViewState, baseRev int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[projectID]
	if !ok {
		return 0, ErrNotFound
	}
	if v.rev != baseRev {
		return 0, ErrConflict
	}
	v.value = view
	v.rev++
	return v.rev, nil
}

func (s *MemoryStore) CreateAsset(_ context.Context, a board.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.assets[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (board.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return board.Asset{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) SetAssetDeleted(_ context.Context, id string, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return ErrNotFound
	}
	a.Deleted = deleted
	s.assets[id] = a
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}
