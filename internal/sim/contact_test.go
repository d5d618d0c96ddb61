package sim

import (
	"testing"
	"time"

	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/physics"
)

func TestContactLifecycle(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	hazard := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	player := w.spawn(t, ctx, "player", cp.Vector{X: 5}, 100)

	// Begin arrives during tick 10.
	w.phys.pushBegin(hazard.Body, player.Body)
	events := w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(10), 10)
	if len(events) != 1 || events[0].Kind != ContactStart {
		t.Fatalf("tick 10 events = %+v, want single Start", events)
	}
	if events[0].StartedAt != atTick(10) {
		t.Fatalf("StartedAt = %v, want %v", events[0].StartedAt, atTick(10))
	}

	// Ticks 11..19: the pair stays active, one Continue per tick.
	for tick := uint64(11); tick <= 19; tick++ {
		events = w.tracker.Track(nil, w.reg, atTick(tick), tick)
		if len(events) != 1 || events[0].Kind != ContactContinue {
			t.Fatalf("tick %d events = %+v, want single Continue", tick, events)
		}
		if want := uint32(tick - 10); events[0].TickCount != want {
			t.Fatalf("tick %d TickCount = %d, want %d", tick, events[0].TickCount, want)
		}
	}

	// End arrives during tick 20; duration covers ticks 10..20.
	w.phys.pushEnd(hazard.Body, player.Body)
	events = w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(20), 20)
	if len(events) != 1 || events[0].Kind != ContactEnd {
		t.Fatalf("tick 20 events = %+v, want single End", events)
	}
	if want := 500 * time.Millisecond; events[0].Duration != want {
		t.Fatalf("Duration = %v, want %v", events[0].Duration, want)
	}
	if w.tracker.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d after end, want 0", w.tracker.ActiveCount())
	}
}

func TestContactBeginEndSameTick(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	a := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	b := w.spawn(t, ctx, "player", cp.Vector{X: 5}, 100)

	w.phys.pushBegin(a.Body, b.Body)
	w.phys.pushEnd(a.Body, b.Body)
	events := w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(7), 7)

	if len(events) != 2 {
		t.Fatalf("got %d events, want Start then End", len(events))
	}
	if events[0].Kind != ContactStart || events[1].Kind != ContactEnd {
		t.Fatalf("kinds = %v, %v; want start, end", events[0].Kind, events[1].Kind)
	}
	if events[1].Duration != 0 {
		t.Fatalf("same-tick Duration = %v, want 0", events[1].Duration)
	}
}

func TestContactDuplicateBeginKeepsStartTime(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	a := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	b := w.spawn(t, ctx, "player", cp.Vector{X: 5}, 100)

	w.phys.pushBegin(a.Body, b.Body)
	w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(3), 3)

	// A second begin for the same pair is an engine artifact.
	w.phys.pushBegin(a.Body, b.Body)
	events := w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(4), 4)
	for _, ev := range events {
		if ev.Kind == ContactStart {
			t.Fatal("duplicate begin produced a second Start")
		}
	}

	w.phys.pushEnd(a.Body, b.Body)
	events = w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(5), 5)
	if len(events) != 1 || events[0].Kind != ContactEnd {
		t.Fatalf("events = %+v, want single End", events)
	}
	if events[0].StartedAt != atTick(3) {
		t.Fatalf("StartedAt = %v, want original %v", events[0].StartedAt, atTick(3))
	}
}

func TestContactSpuriousEndIgnored(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	a := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	b := w.spawn(t, ctx, "player", cp.Vector{X: 5}, 100)

	w.phys.pushEnd(a.Body, b.Body)
	events := w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(2), 2)
	if len(events) != 0 {
		t.Fatalf("spurious end produced events: %+v", events)
	}
}

func TestContactUnknownHandleDropped(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	a := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	stray := cp.NewBody(1, 1) // never registered

	events := w.tracker.Track([]physics.CollisionEvent{
		{A: a.Body, B: stray, Kind: physics.EventBegin},
	}, w.reg, atTick(2), 2)

	if len(events) != 0 {
		t.Fatalf("untranslatable event produced output: %+v", events)
	}
	if w.tracker.ActiveCount() != 0 {
		t.Fatal("untranslatable event created an active contact")
	}
}

func TestContactDroppedPairIgnoresTrailingEnd(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	a := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	b := w.spawn(t, ctx, "player", cp.Vector{X: 5}, 100)

	w.phys.pushBegin(a.Body, b.Body)
	w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(3), 3)

	// Force-expire (hit cap path); the engine's later end must be silent.
	w.tracker.Drop(a.ID, b.ID)
	w.phys.pushEnd(a.Body, b.Body)
	events := w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(4), 4)
	if len(events) != 0 {
		t.Fatalf("trailing end after Drop produced events: %+v", events)
	}
}

func TestContactRemoveEntityPurgesPairs(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	a := w.spawn(t, ctx, "hazard", cp.Vector{}, 0)
	b := w.spawn(t, ctx, "player", cp.Vector{X: 5}, 100)
	c := w.spawn(t, ctx, "player", cp.Vector{X: 8}, 100)

	w.phys.pushBegin(a.Body, b.Body)
	w.phys.pushBegin(a.Body, c.Body)
	w.tracker.Track(w.phys.DrainEvents(), w.reg, atTick(3), 3)
	if w.tracker.ActiveCount() != 2 {
		t.Fatalf("ActiveCount = %d, want 2", w.tracker.ActiveCount())
	}

	w.tracker.RemoveEntity(a.ID)
	if w.tracker.ActiveCount() != 0 {
		t.Fatalf("ActiveCount after RemoveEntity = %d, want 0", w.tracker.ActiveCount())
	}
}
