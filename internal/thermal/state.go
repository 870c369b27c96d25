package thermal

import (
	"sync"
	"time"
)

// State is an ordered thermal severity level
type State int

const (
	StateNormal State = iota
	StateWarm
	StateHot
	StateCritical
	StateEmergency
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateWarm:
		return "Warm"
	case StateHot:
		return "Hot"
	case StateCritical:
		return "Critical"
	case StateEmergency:
		return "Emergency"
	default:
		return "Unknown"
	}
}

// Transition records one change of severity and the temperature that
// caused it
type Transition struct {
	From        State
	To          State
	Temperature float64
	At          time.Time
}

// Bands holds the lower boundary of each elevated severity level, in
// celsius. A boundary is inclusive on entry: exactly Warm degrees is Warm,
// not Normal.
type Bands struct {
	Warm      float64
	Hot       float64
	Critical  float64
	Emergency float64
}

func DefaultBands() Bands {
	return Bands{
		Warm:      35,
		Hot:       40,
		Critical:  45,
		Emergency: 50,
	}
}

func (b Bands) Validate() error {
	if b.Warm < b.Hot && b.Hot < b.Critical && b.Critical < b.Emergency {
		return nil
	}

	return errFactory.WithData(ErrInvalidBands, b)
}

// Classify maps a temperature to its severity band
func (b Bands) Classify(celsius float64) State {
	switch {
	case celsius >= b.Emergency:
		return StateEmergency
	case celsius >= b.Critical:
		return StateCritical
	case celsius >= b.Hot:
		return StateHot
	case celsius >= b.Warm:
		return StateWarm
	default:
		return StateNormal
	}
}

// StateMachine holds the current severity level and reports changes. The
// held state only moves through Tick, one evaluation per poll cycle.
type StateMachine struct {
	mu             sync.Mutex
	bands          Bands
	trendThreshold float64
	current        State
}

func NewStateMachine(bands Bands, trendThreshold float64) (*StateMachine, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	if trendThreshold <= 0 {
		return nil, errFactory.WithData(ErrInvalidThreshold, trendThreshold)
	}

	return &StateMachine{
		bands:          bands,
		trendThreshold: trendThreshold,
	}, nil
}

// Current returns the held severity level
func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// Tick evaluates one snapshot against the held severity. A temperature
// rising faster than the trend threshold escalates Normal to Hot ahead of
// the literal boundary crossing; the override never lowers severity. The
// returned transition is valid only when changed is true.
func (m *StateMachine) Tick(snap Snapshot, trend float64, trendOK bool) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	effective := m.bands.Classify(snap.Overall)
	if effective == StateNormal && trendOK && trend > m.trendThreshold {
		effective = StateHot
	}

	if effective == m.current {
		return Transition{}, false
	}

	transition := Transition{
		From:        m.current,
		To:          effective,
		Temperature: snap.Overall,
		At:          snap.ObservedAt,
	}
	m.current = effective

	return transition, true
}

// Reconfigure swaps band boundaries and the trend threshold at runtime.
// The held severity is left alone; the next Tick re-evaluates against the
// new boundaries.
func (m *StateMachine) Reconfigure(bands Bands, trendThreshold float64) error {
	if err := bands.Validate(); err != nil {
		return err
	}
	if trendThreshold <= 0 {
		return errFactory.WithData(ErrInvalidThreshold, trendThreshold)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.bands = bands
	m.trendThreshold = trendThreshold

	return nil
}
