package sim

import "errors"

var (
	// ErrNotFound reports a registry, buff, or contact lookup miss.
	// Recoverable; the caller decides the fallback.
	ErrNotFound = errors.New("not found")

	// ErrRegistered reports a duplicate entity registration.
	ErrRegistered = errors.New("entity already registered")

	// ErrOnCooldown rejects a skill activation inside its cooldown window.
	// Surfaced to the command's submitter as a structured failure.
	ErrOnCooldown = errors.New("skill on cooldown")

	// ErrUnknownSkill rejects activation of a skill id with no behavior.
	ErrUnknownSkill = errors.New("unknown skill")

	// ErrDesync reports a registry/physics-world handle mismatch. Fatal to
	// the affected entity: it is force-removed from both sides and logged.
	ErrDesync = errors.New("registry and physics world out of sync")

	// ErrQueueFull rejects command submission when the bounded queue is at
	// capacity.
	ErrQueueFull = errors.New("command queue full")
)
