// Package notify pushes revision-change events to open sessions over
// websocket so they can refetch state they hold a stale copy of. It carries
// no document content, only invalidations.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event tells a session that a resource moved to a new revision.
type Event struct {
	Type      string `json:"type"` // "canvasChanged" or "viewChanged"
	ProjectID string `json:"projectId"`
	Rev       int64  `json:"rev"`
}

const (
	TypeCanvasChanged = "canvasChanged"
	TypeViewChanged   = "viewChanged"
)

type room struct {
	clients map[string]*Client // clientID -> client
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*room // projectID -> room
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// CanvasChanged broadcasts a canvas invalidation to all sessions watching
// the project. Every session gets it; the one that wrote the revision
// already holds it and drops the event by rev comparison.
func (h *Hub) CanvasChanged(projectID string, rev int64) {
	h.broadcast(projectID, Event{Type: TypeCanvasChanged, ProjectID: projectID, Rev: rev})
}

// ViewChanged broadcasts a view invalidation.
func (h *Hub) ViewChanged(projectID string, rev int64) {
	h.broadcast(projectID, Event{Type: TypeViewChanged, ProjectID: projectID, Rev: rev})
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	r, ok := h.rooms[client.ProjectID]
	if !ok {
		r = &room{clients: make(map[string]*Client)}
		h.rooms[client.ProjectID] = r
	}
	r.clients[client.ClientID] = client
	h.mu.Unlock()

	slog.Info("session watching", "project", client.ProjectID, "client", client.ClientID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	r, ok := h.rooms[client.ProjectID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(r.clients, client.ClientID)
	close(client.send)

	if len(r.clients) == 0 {
		delete(h.rooms, client.ProjectID)
	}
	h.mu.Unlock()

	slog.Info("session gone", "project", client.ProjectID, "client", client.ClientID)
}

func (h *Hub) broadcast(projectID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	r, ok := h.rooms[projectID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}
