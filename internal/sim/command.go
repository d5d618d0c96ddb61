package sim

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"

	"github.com/riftarena/server/internal/core/ids"
	"github.com/riftarena/server/internal/physics"
)

// CommandKind enumerates the externally submitted gameplay commands.
type CommandKind uint8

const (
	CmdUseSkill CommandKind = iota
	CmdMove
	CmdSpawn
	CmdDespawn
)

// Command is one externally submitted request. Submission is concurrent;
// processing happens inside the tick on the pipeline goroutine.
type Command struct {
	ID    uuid.UUID
	Kind  CommandKind
	Actor ids.EntityID

	// CmdUseSkill. SkillName addresses the skill when SkillID is zero;
	// tooling and scripts cast by name, clients by id.
	SkillID   int32
	SkillName string
	Aim       cp.Vector

	// CmdMove
	Velocity cp.Vector

	// CmdSpawn
	Tag      string
	BodyKind physics.BodyKind
	Shape    physics.ShapeDef
	Pos      cp.Vector
	Health   int32

	// Delivery of the structured result to the submitter; nil when the
	// submitter does not care. Buffered so the pipeline never blocks.
	Reply chan CommandResult
}

// CommandResult reports the outcome of one command back to its submitter.
type CommandResult struct {
	ID     uuid.UUID
	Entity ids.EntityID // spawned entity id for CmdSpawn
	Err    error
}

// CommandQueue is the bounded handoff between submitter goroutines and the
// tick pipeline. Push is safe for concurrent use; Drain runs on the
// pipeline goroutine once per tick.
type CommandQueue struct {
	mu    sync.Mutex
	buf   []Command
	limit int
}

func NewCommandQueue(limit int) *CommandQueue {
	if limit <= 0 {
		limit = 256
	}
	return &CommandQueue{
		buf:   make([]Command, 0, limit),
		limit: limit,
	}
}

// Push enqueues a command, assigning it an id when the caller left it zero.
// Fails with ErrQueueFull at capacity; the submitter decides whether to
// retry.
func (q *CommandQueue) Push(cmd Command) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) >= q.limit {
		return uuid.Nil, ErrQueueFull
	}
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	q.buf = append(q.buf, cmd)
	return cmd.ID, nil
}

// Drain returns all pending commands in submission order and resets the
// buffer.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	out := q.buf
	q.buf = make([]Command, 0, q.limit)
	return out
}

// Len reports the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
