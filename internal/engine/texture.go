package engine

import "log/slog"

// Texture is an opaque handle owned by the rendering backend. The cache never
// inspects it.
type Texture any

// TextureState describes a cache lookup result.
type TextureState int

const (
	TextureMiss TextureState = iota
	TexturePending
	TextureReady
)

// LoadFunc fetches a texture for a resolved absolute URL. It runs on its own
// goroutine and may block.
type LoadFunc func(url string) (Texture, error)

// AssetTextureCache deduplicates in-flight texture loads and keeps completed
// textures for the whole session, keyed by URL. Correctness depends only on
// dedup, not bounding; there is no eviction.
//
// All methods must be called from the workspace goroutine. Fetches run on
// their own goroutines and re-enter through the post callback, which queues
// the completion back onto the workspace goroutine.
type AssetTextureCache struct {
	fetch LoadFunc
	post  func(func())

	ready   map[string]Texture
	pending map[string][]func(Texture, error)
}

// NewAssetTextureCache creates a cache using fetch for misses. post schedules
// a closure onto the workspace goroutine.
func NewAssetTextureCache(fetch LoadFunc, post func(func())) *AssetTextureCache {
	return &AssetTextureCache{
		fetch:   fetch,
		post:    post,
		ready:   make(map[string]Texture),
		pending: make(map[string][]func(Texture, error)),
	}
}

// Get returns the cached texture and its state without triggering a load.
func (c *AssetTextureCache) Get(url string) (Texture, TextureState) {
	if tex, ok := c.ready[url]; ok {
		return tex, TextureReady
	}
	if _, ok := c.pending[url]; ok {
		return nil, TexturePending
	}
	return nil, TextureMiss
}

// Load fetches the texture for url, invoking done on the workspace goroutine.
// Concurrent loads for the same URL share one fetch.
func (c *AssetTextureCache) Load(url string, done func(Texture, error)) {
	if tex, ok := c.ready[url]; ok {
		done(tex, nil)
		return
	}
	if waiters, ok := c.pending[url]; ok {
		c.pending[url] = append(waiters, done)
		return
	}

	c.pending[url] = []func(Texture, error){done}
	go func() {
		tex, err := c.fetch(url)
		c.post(func() {
			c.settle(url, tex, err)
		})
	}()
}

func (c *AssetTextureCache) settle(url string, tex Texture, err error) {
	waiters := c.pending[url]
	delete(c.pending, url)

	if err != nil {
		slog.Warn("texture load failed", "url", url, "error", err)
	} else {
		c.ready[url] = tex
	}
	for _, done := range waiters {
		done(tex, err)
	}
}
