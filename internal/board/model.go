package board

import (
	"time"

	"github.com/driftboard/driftboard/internal/geom"
)

type ObjectType string

const (
	ObjectTypeImage ObjectType = "image"
	ObjectTypeText  ObjectType = "text"
	ObjectTypeShape ObjectType = "shape"
	ObjectTypeGroup ObjectType = "group"
)

// CanvasObject is a placed item on the board. Position is the item's center in
// world space; scale multiplies the asset's native pixel dimensions.
type CanvasObject struct {
	ID         string     `json:"id"`
	Type       ObjectType `json:"type"`
	AssetID    string     `json:"assetId,omitempty"`
	Position   geom.Point `json:"position"`
	ScaleX     float64    `json:"scaleX"`
	ScaleY     float64    `json:"scaleY"`
	Rotation   float64    `json:"rotation"`
	NativeSize *geom.Size `json:"nativeSize,omitempty"`
	ZIndex     int        `json:"zIndex"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// WorldSize returns the object's world-space dimensions: native size times
// scale. Objects without a known native size fall back to a unit placeholder
// so they still hit-test and draw while the asset loads.
func (o CanvasObject) WorldSize() geom.Size {
	w, h := placeholderSide, placeholderSide
	if o.NativeSize != nil && o.NativeSize.Width > 0 && o.NativeSize.Height > 0 {
		w, h = o.NativeSize.Width, o.NativeSize.Height
	}
	return geom.Size{Width: w * o.ScaleX, Height: h * o.ScaleY}
}

// LocalBounds returns the object's bounds in its own center-origin local space,
// before scale/rotation.
func (o CanvasObject) LocalBounds() geom.Rect {
	w, h := placeholderSide, placeholderSide
	if o.NativeSize != nil && o.NativeSize.Width > 0 && o.NativeSize.Height > 0 {
		w, h = o.NativeSize.Width, o.NativeSize.Height
	}
	return geom.Rect{X: -w / 2, Y: -h / 2, Width: w, Height: h}
}

// WorldMatrix returns the local→world transform for the object.
func (o CanvasObject) WorldMatrix() geom.Matrix2D {
	return geom.FromCardTransform(o.Position, o.ScaleX, o.ScaleY, o.Rotation)
}

// WorldBounds returns the axis-aligned world-space bounding box.
func (o CanvasObject) WorldBounds() geom.Rect {
	return o.WorldMatrix().TransformRect(o.LocalBounds())
}

const placeholderSide = 200.0

// ViewState is the per-project camera: screenPoint = worldPoint*Zoom + Offset.
type ViewState struct {
	Offset geom.Point `json:"offset"`
	Zoom   float64    `json:"zoom"`
}

// Asset is an uploaded binary referenced by image objects.
type Asset struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is a full board snapshot: the unit of persistence per project.
type Document struct {
	ProjectID string         `json:"projectId"`
	Objects   []CanvasObject `json:"objects"`
	View      ViewState      `json:"view"`
	CanvasRev int64          `json:"canvasRev"`
	ViewRev   int64          `json:"viewRev"`
}

// Project is board-level metadata.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEmptyDocument creates the initial snapshot for a new project.
func NewEmptyDocument(projectID string) *Document {
	return &Document{
		ProjectID: projectID,
		Objects:   []CanvasObject{},
		View:      ViewState{Zoom: 0.25},
		CanvasRev: 1,
		ViewRev:   1,
	}
}
