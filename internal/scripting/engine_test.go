package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestBootstrapSpawnsBodies(t *testing.T) {
	dir := t.TempDir()
	script := `
spawn_body{tag = "wall", kind = "static", shape = "box", width = 100, height = 10, x = 0, y = -50}
spawn_body{tag = "hazard", shape = "circle", radius = 25, x = 40, y = 0, sensor = true}
`
	if err := os.WriteFile(filepath.Join(dir, "world.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	var got []SpawnRequest
	e := NewEngine(func(req SpawnRequest) error {
		got = append(got, req)
		return nil
	}, zap.NewNop())
	defer e.Close()

	if err := e.Bootstrap(dir); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("spawned %d bodies, want 2", len(got))
	}
	if got[0].Tag != "wall" || got[0].Shape != "box" || got[0].Width != 100 {
		t.Fatalf("first spawn = %+v", got[0])
	}
	if got[1].Kind != "static" {
		t.Fatalf("kind default = %q, want static", got[1].Kind)
	}
	if !got[1].Sensor {
		t.Fatal("sensor flag lost")
	}
}

func TestBootstrapMissingDirIsNotFatal(t *testing.T) {
	e := NewEngine(func(SpawnRequest) error { return nil }, zap.NewNop())
	defer e.Close()
	if err := e.Bootstrap(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("Bootstrap on missing dir: %v", err)
	}
}

func TestBootstrapRejectsMissingTag(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.lua"),
		[]byte(`spawn_body{shape = "circle", radius = 5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(func(SpawnRequest) error { return nil }, zap.NewNop())
	defer e.Close()
	if err := e.Bootstrap(dir); err == nil {
		t.Fatal("Bootstrap accepted a spawn without a tag")
	}
}
