package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// SpawnRequest is the script-facing description of an entity to seed into
// the arena at boot.
type SpawnRequest struct {
	Tag    string
	Kind   string // "static", "dynamic", "kinematic"
	Shape  string // "circle", "box"
	Radius float64
	Width  float64
	Height float64
	Mass   float64
	X, Y   float64
	Health int32
	Sensor bool
}

// SpawnFunc is provided by the host; scripts call it through spawn_body.
type SpawnFunc func(req SpawnRequest) error

// Engine wraps a single gopher-lua VM for world bootstrap scripts.
// Single-goroutine access only (boot sequence).
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	spawn SpawnFunc
}

// NewEngine creates a Lua engine with the arena API registered.
func NewEngine(spawn SpawnFunc, log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, spawn: spawn}
	vm.SetGlobal("spawn_body", vm.NewFunction(e.luaSpawnBody))
	return e
}

// Bootstrap runs every .lua file in the scripts directory. A missing
// directory is not an error; the server just starts with an empty arena.
func (e *Engine) Bootstrap(scriptsDir string) error {
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Info("no scripts directory, skipping world bootstrap",
				zap.String("dir", scriptsDir))
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(scriptsDir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("run %s: %w", path, err)
		}
		e.log.Debug("ran bootstrap script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// luaSpawnBody implements spawn_body{tag=..., kind=..., shape=..., ...}.
// Raises a Lua error on malformed arguments or a failed spawn so the
// offending script line is reported.
func (e *Engine) luaSpawnBody(L *lua.LState) int {
	tbl := L.CheckTable(1)

	req := SpawnRequest{
		Tag:    stringField(tbl, "tag", ""),
		Kind:   stringField(tbl, "kind", "static"),
		Shape:  stringField(tbl, "shape", "circle"),
		Radius: numberField(tbl, "radius", 0),
		Width:  numberField(tbl, "width", 0),
		Height: numberField(tbl, "height", 0),
		Mass:   numberField(tbl, "mass", 1),
		X:      numberField(tbl, "x", 0),
		Y:      numberField(tbl, "y", 0),
		Health: int32(numberField(tbl, "health", 0)),
		Sensor: boolField(tbl, "sensor", false),
	}
	if req.Tag == "" {
		L.RaiseError("spawn_body: tag is required")
		return 0
	}

	if err := e.spawn(req); err != nil {
		L.RaiseError("spawn_body: %v", err)
		return 0
	}
	return 0
}

func stringField(tbl *lua.LTable, key, def string) string {
	if v, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(v)
	}
	return def
}

func numberField(tbl *lua.LTable, key string, def float64) float64 {
	if v, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(v)
	}
	return def
}

func boolField(tbl *lua.LTable, key string, def bool) bool {
	if v, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(v)
	}
	return def
}
