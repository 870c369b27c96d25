package telemetry

import (
	"context"

	"github.com/okkern/thermactl/internal/thermal"
)

// Sink persists thermal observations. Implementations must tolerate being
// called from the event consumer goroutine.
type Sink interface {
	RecordSnapshot(ctx context.Context, snap thermal.Snapshot) error
	RecordTransition(ctx context.Context, transition thermal.Transition) error
	Close() error
}

// Repository defines the interface for telemetry data storage
type Repository interface {
	RecordSnapshot(snap thermal.Snapshot) error
	RecordTransition(transition thermal.Transition) error
	Close() error
}
