package engine

import (
	"github.com/driftboard/driftboard/internal/board"
)

// Diff lists the node operations needed to bring the visual tree in line with
// an object snapshot.
type Diff struct {
	Create  []board.CanvasObject
	Update  []board.CanvasObject
	Destroy []string
}

// Reconcile computes the diff between two object snapshots. Pure; the caller
// applies it through a NodeAdapter.
func Reconcile(prev, next []board.CanvasObject) Diff {
	prevIDs := make(map[string]struct{}, len(prev))
	for _, o := range prev {
		prevIDs[o.ID] = struct{}{}
	}

	var diff Diff
	nextIDs := make(map[string]struct{}, len(next))
	for _, o := range next {
		nextIDs[o.ID] = struct{}{}
		if _, existed := prevIDs[o.ID]; existed {
			diff.Update = append(diff.Update, o)
		} else {
			diff.Create = append(diff.Create, o)
		}
	}
	for _, o := range prev {
		if _, kept := nextIDs[o.ID]; !kept {
			diff.Destroy = append(diff.Destroy, o.ID)
		}
	}
	return diff
}

// NodeAdapter is the thin seam between the reconciler and whatever rendering
// backend draws the board. CreateNode should show an immediate placeholder
// sized from the object's known native dimensions; SetTexture swaps in the
// real pixels later.
type NodeAdapter interface {
	CreateNode(obj board.CanvasObject)
	UpdateNode(obj board.CanvasObject)
	DestroyNode(id string)
	SetTexture(id string, tex Texture)
	HasNode(id string) bool
}

// RenderSync mirrors object snapshots into visual nodes and drives deferred
// texture loading. It never mutates object semantics.
type RenderSync struct {
	adapter NodeAdapter
	cache   *AssetTextureCache
	prev    []board.CanvasObject

	// Image nodes whose asset was not resolvable when they were created,
	// keyed by node id. Retried on every Sync until the asset registers.
	awaiting map[string]string
}

// NewRenderSync creates a reconciler applying diffs through adapter.
func NewRenderSync(adapter NodeAdapter, cache *AssetTextureCache) *RenderSync {
	return &RenderSync{adapter: adapter, cache: cache, awaiting: make(map[string]string)}
}

// Sync applies the snapshot. Geometry for existing nodes is copied on every
// call; new image objects get a placeholder and an async texture fetch.
// Objects can arrive before their asset registers; those keep the placeholder
// and get their fetch as soon as a later Sync finds the asset resolvable.
func (r *RenderSync) Sync(next []board.CanvasObject, assets map[string]board.Asset) {
	diff := Reconcile(r.prev, next)
	r.prev = next

	for _, id := range diff.Destroy {
		r.adapter.DestroyNode(id)
		delete(r.awaiting, id)
	}
	for _, obj := range diff.Update {
		r.adapter.UpdateNode(obj)
	}
	for _, obj := range diff.Create {
		r.adapter.CreateNode(obj)
		r.loadTexture(obj, assets)
	}

	for id, assetID := range r.awaiting {
		if asset, ok := assets[assetID]; ok && asset.URL != "" {
			delete(r.awaiting, id)
			r.requestTexture(id, asset.URL)
		}
	}
}

func (r *RenderSync) loadTexture(obj board.CanvasObject, assets map[string]board.Asset) {
	if obj.Type != board.ObjectTypeImage || obj.AssetID == "" {
		return
	}
	asset, ok := assets[obj.AssetID]
	if !ok || asset.URL == "" {
		r.awaiting[obj.ID] = obj.AssetID
		return
	}
	r.requestTexture(obj.ID, asset.URL)
}

func (r *RenderSync) requestTexture(id, url string) {
	r.cache.Load(url, func(tex Texture, err error) {
		if err != nil {
			// Placeholder stays; the cache already logged the failure.
			return
		}
		// The object may have been deleted while the fetch was in flight.
		if r.adapter.HasNode(id) {
			r.adapter.SetTexture(id, tex)
		}
	})
}
