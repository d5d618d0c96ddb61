package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riftarena/server/internal/core/event"
	"github.com/riftarena/server/internal/core/ids"
	coresys "github.com/riftarena/server/internal/core/system"
)

// Flusher commits one tick's batch as a single atomic store transaction.
// Subscribers of the store observe all of a tick's effects or none.
type Flusher interface {
	Flush(ctx context.Context, batch *TickBatch) error
}

// CoordinatorConfig holds the tick pipeline's tunables.
type CoordinatorConfig struct {
	Interval     time.Duration
	FlushTimeout time.Duration
}

// Coordinator drives the per-tick sequence: step physics → drain events →
// track contacts → handle events → sweep expirations → flush. It is not
// re-entrant: a new tick never begins while the previous tick's flush is in
// flight. Overrun policy: skip — ticker firings arriving during an overlong
// tick are dropped and counted, two ticks' buffers are never interleaved.
type Coordinator struct {
	cfg     CoordinatorConfig
	phys    PhysicsEngine
	reg     *Registry
	tracker *Tracker
	buffs   *BuffEngine
	skills  *SkillEngine
	handler *EventHandler
	spawner *Spawner
	queue   *CommandQueue
	flusher Flusher
	bus     *event.Bus
	log     *zap.Logger

	// clock is swappable for deterministic tests.
	clock func() time.Time

	runner *coresys.Runner
	tick   uint64
	ctx    *EffectContext

	overruns       uint64
	commitFailures uint64
}

func NewCoordinator(
	cfg CoordinatorConfig,
	phys PhysicsEngine,
	reg *Registry,
	tracker *Tracker,
	buffs *BuffEngine,
	skills *SkillEngine,
	handler *EventHandler,
	spawner *Spawner,
	queue *CommandQueue,
	flusher Flusher,
	bus *event.Bus,
	log *zap.Logger,
) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		phys:    phys,
		reg:     reg,
		tracker: tracker,
		buffs:   buffs,
		skills:  skills,
		handler: handler,
		spawner: spawner,
		queue:   queue,
		flusher: flusher,
		bus:     bus,
		log:     log,
		clock:   time.Now,
		runner:  coresys.NewRunner(),
	}

	// Despawn must clear an entity from every per-entity store.
	reg.AttachStore(tracker)
	reg.AttachStore(buffs)
	reg.AttachStore(skills)

	c.runner.Register(&inputSystem{c: c})
	c.runner.Register(&simulateSystem{c: c})
	c.runner.Register(&sweepSystem{c: c})
	c.runner.Register(&flushSystem{c: c})
	c.runner.Register(&cleanupSystem{c: c})
	return c
}

// SetClock replaces the time source. Tests only.
func (c *Coordinator) SetClock(clock func() time.Time) {
	c.clock = clock
}

// Submit hands an external command to the pipeline. Safe for concurrent
// use; the command is applied during the next tick's input stage.
func (c *Coordinator) Submit(cmd Command) error {
	_, err := c.queue.Push(cmd)
	return err
}

// Effect exposes the current tick's effect context to boot-time restore
// code. Never used concurrently with Run.
func (c *Coordinator) Effect() *EffectContext {
	if c.ctx == nil {
		c.newTickContext(c.clock())
	}
	return c.ctx
}

func (c *Coordinator) newTickContext(now time.Time) {
	c.ctx = &EffectContext{
		Now:   now,
		Tick:  c.tick,
		Batch: NewTickBatch(c.tick, now),
		Reg:   c.reg,
		Buffs: c.buffs,
		Phys:  c.phys,
		Log:   c.log,
	}
}

// RunTick executes exactly one tick. Exposed for tests and for the boot
// sequence; Run calls it on every ticker firing.
func (c *Coordinator) RunTick(dt time.Duration) {
	// Last tick's telemetry becomes visible now.
	c.bus.SwapBuffers()
	c.bus.DispatchAll()

	c.tick++
	c.newTickContext(c.clock())
	c.runner.Tick(dt)
}

// Run drives the fixed-rate loop until the context is cancelled. The flush
// inside RunTick is the pipeline's only blocking point; when a tick
// (including its flush) overruns the interval, the missed ticker firings
// are skipped and logged, never interleaved.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := c.clock()
			c.RunTick(c.cfg.Interval)
			elapsed := c.clock().Sub(start)
			if elapsed > c.cfg.Interval {
				skipped := int(elapsed / c.cfg.Interval)
				c.overruns++
				c.log.Warn("tick overrun, skipping",
					zap.Uint64("tick", c.tick),
					zap.Duration("elapsed", elapsed),
					zap.Duration("interval", c.cfg.Interval),
					zap.Int("skipped", skipped))
				event.Emit(c.bus, event.TickOverrun{
					Tick:     c.tick,
					Elapsed:  elapsed,
					Interval: c.cfg.Interval,
					Skipped:  skipped,
				})
			}
		}
	}
}

// Overruns returns the number of ticks that exceeded the interval.
func (c *Coordinator) Overruns() uint64 { return c.overruns }

// CommitFailures returns the number of ticks dropped after flush retry.
func (c *Coordinator) CommitFailures() uint64 { return c.commitFailures }

// Tick returns the current tick number.
func (c *Coordinator) Tick() uint64 { return c.tick }

// ── Pipeline stages ────────────────────────────────────────────────

type inputSystem struct{ c *Coordinator }

func (s *inputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *inputSystem) Update(_ time.Duration) {
	c := s.c
	for _, cmd := range c.queue.Drain() {
		res := c.handler.HandleCommand(c.ctx, c.spawner, cmd)
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- res:
			default:
				// Submitter stopped listening; drop the result.
			}
		}
	}
}

type simulateSystem struct{ c *Coordinator }

func (s *simulateSystem) Phase() coresys.Phase { return coresys.PhaseSimulate }

func (s *simulateSystem) Update(dt time.Duration) {
	c := s.c
	c.phys.Step(dt)

	raw := c.phys.DrainEvents()
	contacts := c.tracker.Track(raw, c.reg, c.ctx.Now, c.tick)
	c.handler.HandleContacts(c.ctx, contacts)

	// Diff positions so unmoved bodies produce no row updates.
	c.reg.Each(func(ent *Entity) {
		pos := c.phys.Position(ent.Body)
		if pos != ent.lastPos {
			c.ctx.Batch.Positions[ent.ID] = pos
			ent.lastPos = pos
		}
	})
}

type sweepSystem struct{ c *Coordinator }

func (s *sweepSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *sweepSystem) Update(_ time.Duration) {
	c := s.c
	c.buffs.Sweep(c.ctx)

	// Apply this tick's pending health deltas to the authoritative
	// in-memory health; the flush writes the same deltas to the store.
	for target, delta := range c.ctx.Batch.Health {
		ent, err := c.reg.Lookup(target)
		if err != nil {
			continue // despawned after the delta was queued
		}
		ent.Health += delta
		if ent.Health < 0 {
			ent.Health = 0
		}
	}

	// Registry and space must agree on body membership. A body that left
	// the space without a despawn is a desync and gets force-removed
	// before its despawn row misses this tick's flush.
	var lost []ids.EntityID
	c.reg.Each(func(ent *Entity) {
		if !c.phys.Contains(ent.Body) {
			lost = append(lost, ent.ID)
		}
	})
	for _, id := range lost {
		c.spawner.ForceRemove(c.ctx, id)
	}
}

type flushSystem struct{ c *Coordinator }

func (s *flushSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *flushSystem) Update(_ time.Duration) {
	c := s.c
	batch := c.ctx.Batch
	batch.MarkConsumed()
	if batch.Empty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FlushTimeout)
	defer cancel()

	err := c.flusher.Flush(ctx, batch)
	if err == nil {
		return
	}
	c.log.Warn("tick flush failed, retrying whole batch",
		zap.Uint64("tick", batch.Tick), zap.Error(err))

	if err = c.flusher.Flush(ctx, batch); err == nil {
		return
	}
	// Drop the tick as a whole; partial application is never acceptable.
	c.commitFailures++
	c.log.Error("tick flush failed after retry, dropping tick",
		zap.Uint64("tick", batch.Tick), zap.Error(err))
	event.Emit(c.bus, event.CommitFailed{Tick: batch.Tick, Retried: true, Err: err})
}

type cleanupSystem struct{ c *Coordinator }

func (s *cleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *cleanupSystem) Update(_ time.Duration) {
	s.c.spawner.FlushPurgeQueue(s.c.reg)
}
