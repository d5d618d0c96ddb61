package event

import (
	"time"

	"github.com/riftarena/server/internal/core/ids"
)

// Telemetry events published by the tick pipeline. Subscribers (logging,
// future metrics) observe transitions one tick late by bus design.

type ContactStarted struct {
	A, B ids.EntityID
	Tick uint64
}

type ContactEnded struct {
	A, B     ids.EntityID
	Tick     uint64
	Duration time.Duration
}

type TickOverrun struct {
	Tick     uint64
	Elapsed  time.Duration
	Interval time.Duration
	Skipped  int
}

type CommitFailed struct {
	Tick    uint64
	Retried bool
	Err     error
}
