package thermal

import (
	"context"
	"time"
)

// Source identifies where a temperature reading came from
type Source int

const (
	SourceCPU Source = iota
	SourceBattery
	SourceAmbient
)

func (s Source) String() string {
	switch s {
	case SourceCPU:
		return "cpu"
	case SourceBattery:
		return "battery"
	case SourceAmbient:
		return "ambient"
	default:
		return "unknown"
	}
}

// Sample is a single validated reading from one source
type Sample struct {
	Source     Source
	Celsius    float64
	ObservedAt time.Time
}

// Snapshot is the fused view of all sources at one point in time. Overall
// holds the maximum of the currently-valid readings; when no source is
// readable it retains its previous value rather than dropping to zero.
type Snapshot struct {
	Overall      float64
	CPU          float64
	Battery      float64
	Ambient      *float64
	CPUValid     bool
	BatteryValid bool
	ObservedAt   time.Time
}

// CPUSensor reads the package or board temperature on demand
type CPUSensor interface {
	ReadTemperature(ctx context.Context) (float64, error)
}
