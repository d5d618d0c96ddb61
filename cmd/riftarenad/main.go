package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/riftarena/server/internal/config"
	"github.com/riftarena/server/internal/core/event"
	"github.com/riftarena/server/internal/data"
	"github.com/riftarena/server/internal/persist"
	"github.com/riftarena/server/internal/physics"
	"github.com/riftarena/server/internal/scripting"
	"github.com/riftarena/server/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m           RiftArena  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m    authoritative arena simulation         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 45 - len(title)
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("RIFTARENA_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Connect to PostgreSQL and run migrations
	printSection("database")

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(bootCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(bootCtx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")

	snapshots := persist.NewSnapshotRepo(db)
	if err := snapshots.PruneAtBoot(bootCtx, time.Now()); err != nil {
		return fmt.Errorf("prune stale rows: %w", err)
	}
	printOK("stale rows pruned")
	fmt.Println()

	// 4. Load data tables
	printSection("data")

	skillTable, err := data.LoadSkillTable(cfg.Simulation.DataDir + "/skill_list.yaml")
	if err != nil {
		return fmt.Errorf("load skill table: %w", err)
	}
	printStat("skills", skillTable.Count())

	buffTable, err := data.LoadBuffTable(cfg.Simulation.DataDir + "/buff_list.yaml")
	if err != nil {
		return fmt.Errorf("load buff table: %w", err)
	}
	printStat("buffs", buffTable.Count())

	ruleTable, err := data.LoadRuleTable(cfg.Simulation.DataDir + "/rule_list.yaml")
	if err != nil {
		return fmt.Errorf("load rule table: %w", err)
	}
	printStat("interaction rules", ruleTable.Count())
	fmt.Println()

	// 5. Build the simulation core
	printSection("simulation")

	engine := physics.NewEngine(
		cp.Vector{X: cfg.Physics.GravityX, Y: cfg.Physics.GravityY},
		cfg.Physics.Iterations,
		cfg.Simulation.MaxEventsPerTick,
		log,
	)

	buffs, err := sim.NewBuffEngine(buffTable)
	if err != nil {
		return fmt.Errorf("buff engine: %w", err)
	}
	skills, err := sim.NewSkillEngine(skillTable)
	if err != nil {
		return fmt.Errorf("skill engine: %w", err)
	}

	registry := sim.NewRegistry()
	tracker := sim.NewTracker(log)
	spawner := sim.NewSpawner(log)
	bus := event.NewBus()
	handler := sim.NewEventHandler(ruleTable, tracker, skills, bus, log)
	queue := sim.NewCommandQueue(cfg.Simulation.CommandQueue)
	writer := persist.NewTickWriter(db)

	coord := sim.NewCoordinator(
		sim.CoordinatorConfig{
			Interval:     cfg.Simulation.TickInterval,
			FlushTimeout: cfg.Simulation.FlushTimeout,
		},
		engine, registry, tracker, buffs, skills, handler, spawner, queue, writer, bus, log,
	)

	// Contact transitions surface in the server log one tick late, as the
	// bus delivers them.
	event.Subscribe(bus, func(ev event.ContactStarted) {
		log.Debug("contact started",
			zap.Uint64("a", uint64(ev.A)), zap.Uint64("b", uint64(ev.B)),
			zap.Uint64("tick", ev.Tick))
	})
	event.Subscribe(bus, func(ev event.ContactEnded) {
		log.Debug("contact ended",
			zap.Uint64("a", uint64(ev.A)), zap.Uint64("b", uint64(ev.B)),
			zap.Duration("duration", ev.Duration))
	})

	// 6. Restore durable state
	snap, err := snapshots.LoadWorld(bootCtx)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}
	boot := coord.Effect()
	for _, row := range snap.Entities {
		if _, err := spawner.Restore(boot, row); err != nil {
			return fmt.Errorf("restore entity %d: %w", row.ID, err)
		}
	}
	buffs.SeedNextID(snap.MaxBuffID)
	for _, inst := range snap.Buffs {
		buffs.Restore(inst)
	}
	for _, row := range snap.Cooldowns {
		// The data table is authoritative for the base cooldown; the
		// stored value only covers skills retired from the table.
		base := time.Duration(row.BaseMs) * time.Millisecond
		if info := skillTable.Get(row.SkillID); info != nil {
			base = time.Duration(info.CooldownMs) * time.Millisecond
		}
		skills.RestoreCooldown(row.EntityID, row.SkillID, row.LastUsedAt, base)
	}
	printStat("entities restored", len(snap.Entities))
	printStat("buffs restored", len(snap.Buffs))
	printStat("cooldowns restored", len(snap.Cooldowns))

	// 7. Run world bootstrap scripts (arena geometry, hazards)
	before := registry.Count()
	lua := scripting.NewEngine(func(req scripting.SpawnRequest) error {
		kind, shape, err := parseSpawn(req)
		if err != nil {
			return err
		}
		_, err = spawner.Spawn(boot, req.Tag, kind, shape, cp.Vector{X: req.X, Y: req.Y}, req.Health)
		return err
	}, log)
	defer lua.Close()
	if err := lua.Bootstrap(cfg.Simulation.ScriptsDir); err != nil {
		return fmt.Errorf("world bootstrap: %w", err)
	}
	printStat("scripted bodies", registry.Count()-before)
	fmt.Println()

	// 8. Start the tick loop
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("server ready")
	printReady(fmt.Sprintf("tick loop running (interval: %s)", cfg.Simulation.TickInterval))
	fmt.Println()

	coord.Run(runCtx)

	log.Info("shutdown signal received, tick loop stopped",
		zap.Uint64("ticks", coord.Tick()),
		zap.Uint64("overruns", coord.Overruns()),
		zap.Uint64("commit_failures", coord.CommitFailures()))
	return nil
}

// parseSpawn maps script-level kind/shape names onto engine types.
func parseSpawn(req scripting.SpawnRequest) (physics.BodyKind, physics.ShapeDef, error) {
	var kind physics.BodyKind
	switch req.Kind {
	case "static":
		kind = physics.KindStatic
	case "dynamic":
		kind = physics.KindDynamic
	case "kinematic":
		kind = physics.KindKinematic
	default:
		return 0, physics.ShapeDef{}, fmt.Errorf("unknown body kind %q", req.Kind)
	}

	def := physics.ShapeDef{
		Radius: req.Radius,
		Width:  req.Width,
		Height: req.Height,
		Mass:   req.Mass,
		Sensor: req.Sensor,
	}
	switch req.Shape {
	case "circle":
		def.Kind = physics.ShapeCircle
	case "box":
		def.Kind = physics.ShapeBox
	default:
		return 0, physics.ShapeDef{}, fmt.Errorf("unknown shape %q", req.Shape)
	}
	return kind, def, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
