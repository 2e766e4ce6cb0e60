//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"syscall/js"
	"time"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/engine"
	"github.com/driftboard/driftboard/internal/geom"
)

var ws *engine.Workspace

// jsAdapter forwards reconciliation output to a JS object implementing
// createNode/updateNode/destroyNode/setTexture/hasNode.
type jsAdapter struct {
	v js.Value
}

func (a *jsAdapter) CreateNode(obj board.CanvasObject) {
	a.v.Call("createNode", objectToJS(obj))
}

func (a *jsAdapter) UpdateNode(obj board.CanvasObject) {
	a.v.Call("updateNode", objectToJS(obj))
}

func (a *jsAdapter) DestroyNode(id string) {
	a.v.Call("destroyNode", id)
}

func (a *jsAdapter) SetTexture(id string, tex engine.Texture) {
	data, ok := tex.([]byte)
	if !ok {
		return
	}
	buf := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(buf, data)
	a.v.Call("setTexture", id, buf)
}

func (a *jsAdapter) HasNode(id string) bool {
	return a.v.Call("hasNode", id).Bool()
}

func fetchTexture(url string) (engine.Texture, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch texture: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func main() {
	api := js.Global().Get("Object").New()

	// --- Lifecycle ---
	api.Set("init", js.FuncOf(initWorkspace))
	api.Set("load", js.FuncOf(load))
	api.Set("applyRemote", js.FuncOf(applyRemote))
	api.Set("registerAsset", js.FuncOf(registerAsset))
	api.Set("tick", js.FuncOf(tick))

	// --- Input (frontend → core) ---
	api.Set("pointerDown", js.FuncOf(pointerDown))
	api.Set("pointerMove", js.FuncOf(pointerMove))
	api.Set("pointerUp", js.FuncOf(pointerUp))
	api.Set("wheel", js.FuncOf(wheel))
	api.Set("doubleClick", js.FuncOf(doubleClick))
	api.Set("keyDown", js.FuncOf(keyDown))
	api.Set("dropImage", js.FuncOf(dropImage))

	// --- Queries (frontend ← core) ---
	api.Set("objects", js.FuncOf(objects))
	api.Set("view", js.FuncOf(view))
	api.Set("selectedIds", js.FuncOf(selectedIDs))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("focusObject", js.FuncOf(focusObject))

	js.Global().Set("driftboardCore", api)
	js.Global().Set("driftboardWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

type initConfig struct {
	ScreenWidth  float64 `json:"screenWidth"`
	ScreenHeight float64 `json:"screenHeight"`
}

// initWorkspace takes (configJSON, adapter, callbacks) where callbacks is an
// object of optional JS functions: onCanvasChanged, onViewChanged,
// openViewer, confirmDelete, deleteAssets, restoreAssets.
func initWorkspace(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(map[string]interface{}{"error": "init(config, adapter[, callbacks])"})
	}

	var cfg initConfig
	if err := json.Unmarshal([]byte(args[0].String()), &cfg); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	adapter := &jsAdapter{v: args[1]}

	var cbs js.Value
	if len(args) > 2 {
		cbs = args[2]
	}

	opts := engine.Options{
		ScreenSize: geom.Size{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight},
	}
	if fn := callback(cbs, "onCanvasChanged"); !fn.IsUndefined() {
		opts.OnCanvasChanged = func(objs []board.CanvasObject) {
			data, _ := json.Marshal(objs)
			fn.Invoke(string(data))
		}
	}
	if fn := callback(cbs, "onViewChanged"); !fn.IsUndefined() {
		opts.OnViewChanged = func(v board.ViewState) {
			data, _ := json.Marshal(v)
			fn.Invoke(string(data))
		}
	}
	if fn := callback(cbs, "openViewer"); !fn.IsUndefined() {
		opts.OpenViewer = func(id string, origin geom.Rect) {
			data, _ := json.Marshal(origin)
			fn.Invoke(id, string(data))
		}
	}
	if fn := callback(cbs, "confirmDelete"); !fn.IsUndefined() {
		opts.ConfirmDelete = func(objectCount, orphanedAssets int) bool {
			return fn.Invoke(objectCount, orphanedAssets).Bool()
		}
	}
	if fn := callback(cbs, "deleteAssets"); !fn.IsUndefined() {
		opts.DeleteAssets = func(ids []string) { fn.Invoke(stringsToJS(ids)) }
	}
	if fn := callback(cbs, "restoreAssets"); !fn.IsUndefined() {
		opts.RestoreAssets = func(ids []string) { fn.Invoke(stringsToJS(ids)) }
	}

	ws = engine.NewWorkspace(opts, adapter, fetchTexture)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func load(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "not initialized or missing document"})
	}
	var doc board.Document
	if err := json.Unmarshal([]byte(args[0].String()), &doc); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	ws.Load(&doc)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func applyRemote(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 1 {
		return nil
	}
	var objs []board.CanvasObject
	if err := json.Unmarshal([]byte(args[0].String()), &objs); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	ws.ApplyRemote(objs)
	return nil
}

func registerAsset(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 1 {
		return nil
	}
	var a board.Asset
	if err := json.Unmarshal([]byte(args[0].String()), &a); err != nil {
		return nil
	}
	ws.RegisterAsset(a)
	return nil
}

func tick(this js.Value, args []js.Value) interface{} {
	if ws == nil {
		return nil
	}
	ws.Tick(time.Now())
	return nil
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 2 {
		return nil
	}
	mods := engine.Modifiers{}
	if len(args) > 2 {
		mods.Shift = args[2].Truthy()
	}
	ws.PointerDown(geom.Point{X: args[0].Float(), Y: args[1].Float()}, mods)
	return nil
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 2 {
		return nil
	}
	ws.PointerMove(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 2 {
		return nil
	}
	ws.PointerUp(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return nil
}

func wheel(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 4 {
		return nil
	}
	ws.Wheel(geom.Point{X: args[0].Float(), Y: args[1].Float()}, args[2].Float(), args[3].Int())
	return nil
}

func doubleClick(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 2 {
		return nil
	}
	ws.DoubleClick(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return nil
}

func keyDown(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 1 {
		return nil
	}
	cmdOrCtrl := len(args) > 1 && args[1].Truthy()
	ws.KeyDown(args[0].String(), cmdOrCtrl)
	return nil
}

func dropImage(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 3 {
		return nil
	}
	var a board.Asset
	if err := json.Unmarshal([]byte(args[2].String()), &a); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	obj := ws.DropImage(geom.Point{X: args[0].Float(), Y: args[1].Float()}, a)
	data, _ := json.Marshal(obj)
	return js.ValueOf(string(data))
}

func objects(this js.Value, args []js.Value) interface{} {
	if ws == nil {
		return js.ValueOf("[]")
	}
	data, _ := json.Marshal(ws.Objects())
	return js.ValueOf(string(data))
}

func view(this js.Value, args []js.Value) interface{} {
	if ws == nil {
		return js.ValueOf("{}")
	}
	data, _ := json.Marshal(ws.View())
	return js.ValueOf(string(data))
}

func selectedIDs(this js.Value, args []js.Value) interface{} {
	if ws == nil {
		return js.ValueOf("[]")
	}
	data, _ := json.Marshal(ws.SelectedIDs())
	return js.ValueOf(string(data))
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(ws.HitTest(geom.Point{X: args[0].Float(), Y: args[1].Float()}))
}

func focusObject(this js.Value, args []js.Value) interface{} {
	if ws == nil || len(args) < 1 {
		return nil
	}
	ws.FocusObject(args[0].String())
	return nil
}

func callback(cbs js.Value, name string) js.Value {
	if cbs.IsUndefined() || cbs.IsNull() {
		return js.Undefined()
	}
	fn := cbs.Get(name)
	if fn.Type() != js.TypeFunction {
		return js.Undefined()
	}
	return fn
}

func stringsToJS(ss []string) js.Value {
	arr := js.Global().Get("Array").New(len(ss))
	for i, s := range ss {
		arr.SetIndex(i, s)
	}
	return arr
}

func objectToJS(obj board.CanvasObject) js.Value {
	data, _ := json.Marshal(obj)
	return js.ValueOf(string(data))
}
