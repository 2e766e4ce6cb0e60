package engine

import (
	"log/slog"
	"math"
	"slices"

	"github.com/driftboard/driftboard/internal/geom"
)

// Direction is an arrow-key spatial navigation direction.
type Direction int

const (
	DirLeft Direction = iota
	DirRight
	DirUp
	DirDown
)

// KeyDown dispatches keyboard shortcuts. Keys use DOM KeyboardEvent.key
// values; cmdOrCtrl is true when either Meta or Control is held.
func (ws *Workspace) KeyDown(key string, cmdOrCtrl bool) {
	switch key {
	case "Backspace", "Delete":
		ws.DeleteSelection()
	case "z":
		if cmdOrCtrl {
			ws.Undo()
		}
	case "0":
		ws.ResetZoom()
	case "f":
		ws.ToggleFocus()
	case "ArrowLeft":
		ws.Navigate(DirLeft)
	case "ArrowRight":
		ws.Navigate(DirRight)
	case "ArrowUp":
		ws.Navigate(DirUp)
	case "ArrowDown":
		ws.Navigate(DirDown)
	}
}

// DeleteSelection removes the selected objects, soft-deleting any assets that
// would be orphaned. When orphans exist the confirm hook gets a say; declining
// aborts the whole operation. The pre-delete state is pushed onto the undo
// stack for exact restoration.
func (ws *Workspace) DeleteSelection() {
	ids := ws.selection.IDs()
	if len(ids) == 0 {
		return
	}

	orphans := ws.orphanedAssets(ids)
	if len(orphans) > 0 && ws.opts.ConfirmDelete != nil {
		if !ws.opts.ConfirmDelete(len(ids), len(orphans)) {
			return
		}
	}

	ws.undo.push(undoEntry{
		objects:       ws.store.Snapshot(),
		assets:        cloneAssets(ws.assets),
		deletedAssets: orphans,
	})

	ws.store.Remove(ids)
	for _, assetID := range orphans {
		a := ws.assets[assetID]
		a.Deleted = true
		ws.assets[assetID] = a
	}
	if len(orphans) > 0 && ws.opts.DeleteAssets != nil {
		ws.opts.DeleteAssets(orphans)
	}

	ws.selection.Clear()
	ws.canvasChanged()
}

// Undo pops the last deletion and restores objects and assets synchronously,
// then re-persists.
func (ws *Workspace) Undo() {
	entry, ok := ws.undo.pop()
	if !ok {
		return
	}

	ws.store.ReplaceAll(entry.objects)
	ws.assets = cloneAssets(entry.assets)
	if len(entry.deletedAssets) > 0 && ws.opts.RestoreAssets != nil {
		ws.opts.RestoreAssets(entry.deletedAssets)
	}

	ws.selection.Clear()
	ws.canvasChanged()
	slog.Debug("undo restored deletion", "objects", len(entry.objects))
}

// orphanedAssets returns assets referenced only by the objects about to be
// deleted.
func (ws *Workspace) orphanedAssets(deleting []string) []string {
	var orphans []string
	for _, obj := range ws.store.Snapshot() {
		if obj.AssetID == "" || !slices.Contains(deleting, obj.ID) {
			continue
		}
		stillUsed := false
		for _, other := range ws.store.Snapshot() {
			if other.AssetID == obj.AssetID && !slices.Contains(deleting, other.ID) {
				stillUsed = true
				break
			}
		}
		if !stillUsed && !slices.Contains(orphans, obj.AssetID) {
			orphans = append(orphans, obj.AssetID)
		}
	}
	return orphans
}

// ResetZoom jumps to the configured overview zoom, holding the current
// viewport center fixed in world space.
func (ws *Workspace) ResetZoom() {
	ws.viewport.CancelAnimation()
	ws.viewport.SetZoomKeepingCenter(ws.opts.ResetZoom)
	ws.viewChanged()
}

// ToggleFocus alternates between framing the single selected object and the
// overview zoom, picking whichever target is farther from the current view so
// repeated presses toggle rather than stall.
func (ws *Workspace) ToggleFocus() {
	id, ok := ws.selection.Single()
	if !ok {
		ws.ResetZoom()
		return
	}
	obj, ok := ws.store.Get(id)
	if !ok {
		return
	}

	fitOffset, fitZoom := ws.viewport.FitView(obj.WorldBounds(), ws.opts.FocusPadding)

	// Compare in log-zoom space; zoom perception is multiplicative.
	distFit := math.Abs(math.Log(fitZoom / ws.viewport.Zoom))
	distReset := math.Abs(math.Log(ws.opts.ResetZoom / ws.viewport.Zoom))

	if distFit >= distReset {
		ws.animateView(fitOffset, fitZoom)
	} else {
		center := ws.viewport.Center()
		offset := geom.Point{
			X: ws.viewport.ScreenSize.Width/2 - center.X*ws.opts.ResetZoom,
			Y: ws.viewport.ScreenSize.Height/2 - center.Y*ws.opts.ResetZoom,
		}
		ws.animateView(offset, ws.opts.ResetZoom)
	}
}

// Navigate moves the selection to the nearest object in the pressed
// direction, then brings it into view if needed. The score is the
// primary-axis distance plus a down-weighted cross-axis penalty.
func (ws *Workspace) Navigate(dir Direction) {
	id, ok := ws.selection.Single()
	if !ok {
		return
	}
	current, ok := ws.store.Get(id)
	if !ok {
		return
	}

	best := ""
	bestScore := math.Inf(1)
	for _, obj := range ws.store.Snapshot() {
		if obj.ID == id {
			continue
		}
		d := obj.Position.Sub(current.Position)
		var primary, cross float64
		switch dir {
		case DirLeft:
			primary, cross = -d.X, math.Abs(d.Y)
		case DirRight:
			primary, cross = d.X, math.Abs(d.Y)
		case DirUp:
			primary, cross = -d.Y, math.Abs(d.X)
		case DirDown:
			primary, cross = d.Y, math.Abs(d.X)
		}
		if primary <= 0 {
			continue
		}
		score := primary + cross*ws.opts.CrossAxisWeight
		if score < bestScore {
			bestScore = score
			best = obj.ID
		}
	}
	if best == "" {
		return
	}

	ws.selection.Replace(best)
	target, _ := ws.store.Get(best)
	if !ws.fullyVisible(target.WorldBounds()) {
		ws.FocusObject(best)
	}
}

func (ws *Workspace) fullyVisible(r geom.Rect) bool {
	view := ws.viewport.WorldRect()
	return r.X >= view.X && r.Y >= view.Y &&
		r.X+r.Width <= view.X+view.Width &&
		r.Y+r.Height <= view.Y+view.Height
}
