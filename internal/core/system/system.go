package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain the external command queue
	PhaseSimulate                // 1: step physics, track contacts, handle events
	PhasePostUpdate              // 2: buff expiration sweep
	PhasePersist                 // 3: flush the tick batch in one transaction
	PhaseCleanup                 // 4: release despawned entities
)

// System is the interface every tick-pipeline stage implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
