package engine

import (
	"slices"

	"github.com/driftboard/driftboard/internal/board"
)

// UndoDepth bounds the deletion history. Older entries fall off the bottom.
const UndoDepth = 10

// undoEntry captures the full pre-delete state so a restore is exact.
type undoEntry struct {
	objects       []board.CanvasObject
	assets        map[string]board.Asset
	deletedAssets []string // assets soft-deleted along with the objects
}

// undoStack is a bounded LIFO of deletion snapshots. Per-session only; it is
// not persisted across reloads.
type undoStack struct {
	entries []undoEntry
}

func (u *undoStack) push(e undoEntry) {
	u.entries = append(u.entries, e)
	if len(u.entries) > UndoDepth {
		u.entries = slices.Delete(u.entries, 0, len(u.entries)-UndoDepth)
	}
}

func (u *undoStack) pop() (undoEntry, bool) {
	if len(u.entries) == 0 {
		return undoEntry{}, false
	}
	e := u.entries[len(u.entries)-1]
	u.entries = u.entries[:len(u.entries)-1]
	return e, true
}

func (u *undoStack) len() int {
	return len(u.entries)
}

func cloneAssets(assets map[string]board.Asset) map[string]board.Asset {
	out := make(map[string]board.Asset, len(assets))
	for k, v := range assets {
		out[k] = v
	}
	return out
}
