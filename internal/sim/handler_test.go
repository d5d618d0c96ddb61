package sim

import (
	"errors"
	"testing"

	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/physics"
)

// runTick pushes queued raw events through track + handle for one tick.
func runTick(w *world, tick uint64) *EffectContext {
	ctx := w.ctx(atTick(tick), tick)
	events := w.tracker.Track(w.phys.DrainEvents(), w.reg, ctx.Now, tick)
	w.handler.HandleContacts(ctx, events)
	return ctx
}

func TestHandlerAuraAppliedOnStartRemovedOnEnd(t *testing.T) {
	w := newWorld(t)
	setup := w.ctx(atTick(1), 1)
	pit := w.spawn(t, setup, "tarpit", cp.Vector{}, 0)
	player := w.spawn(t, setup, "player", cp.Vector{X: 5}, 100)

	w.phys.pushBegin(pit.Body, player.Body)
	ctx := runTick(w, 2)

	active := w.buffs.ActiveOn(player.ID)
	if len(active) != 1 || active[0].BuffType != 3 {
		t.Fatalf("buffs after start = %+v, want one slow aura", active)
	}
	if !active[0].ExpiresAt.IsZero() {
		t.Fatal("contact aura must be held until contact end, not timed")
	}
	if len(ctx.Batch.ContactOpens) != 1 {
		t.Fatalf("contact open rows = %d, want 1", len(ctx.Batch.ContactOpens))
	}

	w.phys.pushEnd(pit.Body, player.Body)
	ctx = runTick(w, 5)

	if n := len(w.buffs.ActiveOn(player.ID)); n != 0 {
		t.Fatalf("buffs after end = %d, want 0", n)
	}
	if len(ctx.Batch.ContactCloses) != 1 {
		t.Fatalf("contact close rows = %d, want 1", len(ctx.Batch.ContactCloses))
	}
	if len(ctx.Batch.BuffRemoves) != 1 {
		t.Fatalf("buff remove rows = %d, want 1", len(ctx.Batch.BuffRemoves))
	}
}

func TestHandlerAuraRemovalTargetsExactInstance(t *testing.T) {
	w := newWorld(t)
	setup := w.ctx(atTick(1), 1)
	pit := w.spawn(t, setup, "tarpit", cp.Vector{}, 0)
	player := w.spawn(t, setup, "player", cp.Vector{X: 5}, 100)

	// An unrelated same-type buff must survive the aura's removal.
	keeper := w.buffs.Apply(setup, player.ID, 3, 0.25, atTick(10000))

	w.phys.pushBegin(pit.Body, player.Body)
	runTick(w, 2)
	w.phys.pushEnd(pit.Body, player.Body)
	runTick(w, 3)

	active := w.buffs.ActiveOn(player.ID)
	if len(active) != 1 || active[0].ID != keeper {
		t.Fatalf("active = %+v, want only pre-existing id %d", active, keeper)
	}
}

func TestHandlerRecollideSameTickReopensContact(t *testing.T) {
	w := newWorld(t)
	setup := w.ctx(atTick(1), 1)
	hazard := w.spawn(t, setup, "hazard", cp.Vector{}, 0)
	player := w.spawn(t, setup, "player", cp.Vector{X: 5}, 100)

	w.phys.pushBegin(hazard.Body, player.Body)
	runTick(w, 2)

	// Separate and touch again before the next tick drains events: the
	// old contact closes and a fresh one opens in the same batch.
	w.phys.pushEnd(hazard.Body, player.Body)
	w.phys.pushBegin(hazard.Body, player.Body)
	ctx := runTick(w, 7)

	if len(ctx.Batch.ContactCloses) != 1 {
		t.Fatalf("contact close rows = %d, want 1", len(ctx.Batch.ContactCloses))
	}
	if len(ctx.Batch.ContactOpens) != 1 {
		t.Fatalf("contact open rows = %d, want 1", len(ctx.Batch.ContactOpens))
	}
	open := ctx.Batch.ContactOpens[0]
	if !open.StartedAt.Equal(atTick(7)) {
		t.Fatalf("reopened contact started at %v, want %v", open.StartedAt, atTick(7))
	}
	if open.StartedAt.Equal(ctx.Batch.ContactCloses[0].StartedAt) {
		t.Fatal("close must reference the old contact, not the reopened one")
	}
	if w.tracker.ActiveCount() != 1 {
		t.Fatalf("active contacts = %d, want 1", w.tracker.ActiveCount())
	}
}

func TestHandlerDamageEveryFifthContinueTick(t *testing.T) {
	w := newWorld(t)
	setup := w.ctx(atTick(1), 1)
	hazard := w.spawn(t, setup, "hazard", cp.Vector{}, 0)
	player := w.spawn(t, setup, "player", cp.Vector{X: 5}, 100)

	w.phys.pushBegin(hazard.Body, player.Body)
	runTick(w, 10)

	total := int32(0)
	for tick := uint64(11); tick <= 30; tick++ {
		ctx := runTick(w, tick)
		dmg := -ctx.Batch.Health[player.ID]
		tickCount := tick - 10
		if tickCount%5 == 0 {
			if dmg != 1 {
				t.Fatalf("tick %d (count %d): damage = %d, want 1", tick, tickCount, dmg)
			}
		} else if dmg != 0 {
			t.Fatalf("tick %d (count %d): damage = %d, want 0", tick, tickCount, dmg)
		}
		total += dmg
	}
	// Continue ticks 1..20 fire on counts 5, 10, 15, 20.
	if total != 4 {
		t.Fatalf("total damage = %d, want 4", total)
	}
}

func TestHandlerHitCapDropsContact(t *testing.T) {
	w := newWorld(t)
	setup := w.ctx(atTick(1), 1)
	hazard := w.spawn(t, setup, "hazard", cp.Vector{}, 0)
	player := w.spawn(t, setup, "player", cp.Vector{X: 5}, 10000)

	w.phys.pushBegin(hazard.Body, player.Body)
	runTick(w, 1)

	// Damage fires every 5th continue tick with a 30-hit cap, so the
	// contact force-expires on the 150th continue tick.
	hits := 0
	for tick := uint64(2); tick <= 200; tick++ {
		ctx := runTick(w, tick)
		if ctx.Batch.Health[player.ID] < 0 {
			hits++
		}
		if w.tracker.ActiveCount() == 0 {
			break
		}
	}
	if hits != 30 {
		t.Fatalf("hits before drop = %d, want 30", hits)
	}
	if w.tracker.ActiveCount() != 0 {
		t.Fatal("contact survived the hit cap")
	}
}

func TestHandlerRuleOrientationIndependent(t *testing.T) {
	w := newWorld(t)
	setup := w.ctx(atTick(1), 1)
	player := w.spawn(t, setup, "player", cp.Vector{}, 100)
	hazard := w.spawn(t, setup, "hazard", cp.Vector{X: 5}, 0)

	// Raw event order reversed relative to the rule's (source, target).
	w.phys.pushBegin(player.Body, hazard.Body)
	runTick(w, 1)

	found := false
	for tick := uint64(2); tick <= 6; tick++ {
		ctx := runTick(w, tick)
		if ctx.Batch.Health[player.ID] < 0 {
			found = true
			if _, wrong := ctx.Batch.Health[hazard.ID]; wrong {
				t.Fatal("damage attributed to the hazard side")
			}
		}
	}
	if !found {
		t.Fatal("no damage fired with reversed pair orientation")
	}
}

func TestHandleCommandUseSkill(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	ent := w.spawn(t, ctx, "player", cp.Vector{}, 100)

	res := w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind: CmdUseSkill, Actor: ent.ID, SkillID: 1, Aim: cp.Vector{X: 1},
	})
	if res.Err != nil {
		t.Fatalf("use skill: %v", res.Err)
	}

	res = w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind: CmdUseSkill, Actor: ent.ID, SkillID: 1, Aim: cp.Vector{X: 1},
	})
	if !errors.Is(res.Err, ErrOnCooldown) {
		t.Fatalf("second cast err = %v, want ErrOnCooldown", res.Err)
	}
}

func TestHandleCommandUseSkillByName(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	ent := w.spawn(t, ctx, "player", cp.Vector{}, 100)

	res := w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind: CmdUseSkill, Actor: ent.ID, SkillName: "dash", Aim: cp.Vector{X: 1},
	})
	if res.Err != nil {
		t.Fatalf("use skill by name: %v", res.Err)
	}
	if v := w.phys.vels[ent.Body]; v.X != 300 {
		t.Fatalf("velocity = %+v, want dash impulse along X", v)
	}

	res = w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind: CmdUseSkill, Actor: ent.ID, SkillName: "blink",
	})
	if !errors.Is(res.Err, ErrUnknownSkill) {
		t.Fatalf("unknown name err = %v, want ErrUnknownSkill", res.Err)
	}
}

func TestHandleCommandMissingActor(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)

	res := w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind: CmdUseSkill, Actor: 9999, SkillID: 1,
	})
	if !errors.Is(res.Err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", res.Err)
	}
}

func TestHandleCommandSpawnDespawn(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)

	res := w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind:     CmdSpawn,
		Tag:      "player",
		BodyKind: physics.KindDynamic,
		Shape:    physics.ShapeDef{Kind: physics.ShapeCircle, Radius: 10, Mass: 1},
		Pos:      cp.Vector{X: 1, Y: 2},
		Health:   100,
	})
	if res.Err != nil {
		t.Fatalf("spawn: %v", res.Err)
	}
	if _, err := w.reg.Lookup(res.Entity); err != nil {
		t.Fatalf("spawned entity not registered: %v", err)
	}
	if len(ctx.Batch.Spawns) != 1 {
		t.Fatalf("spawn rows = %d, want 1", len(ctx.Batch.Spawns))
	}

	res = w.handler.HandleCommand(ctx, w.spawner, Command{Kind: CmdDespawn, Actor: res.Entity})
	if res.Err != nil {
		t.Fatalf("despawn: %v", res.Err)
	}
}

func TestHandleCommandMove(t *testing.T) {
	w := newWorld(t)
	ctx := w.ctx(atTick(1), 1)
	ent := w.spawn(t, ctx, "player", cp.Vector{}, 100)

	res := w.handler.HandleCommand(ctx, w.spawner, Command{
		Kind: CmdMove, Actor: ent.ID, Velocity: cp.Vector{X: 3, Y: 4},
	})
	if res.Err != nil {
		t.Fatalf("move: %v", res.Err)
	}
	if v := w.phys.vels[ent.Body]; v.X != 3 || v.Y != 4 {
		t.Fatalf("velocity = %+v, want {3 4}", v)
	}
}
