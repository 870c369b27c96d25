package thermal

// Action is the closed set of instructions a directive can carry
type Action int

const (
	ActionNone Action = iota
	ActionThrottle
	ActionPause
	ActionResume
	ActionEmergencyStop
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionThrottle:
		return "throttle"
	case ActionPause:
		return "pause"
	case ActionResume:
		return "resume"
	case ActionEmergencyStop:
		return "emergency_stop"
	default:
		return "unknown"
	}
}

// Directive is the cooling policy's instruction for one severity level:
// how much of the baseline capacity the workload may use, and what the
// worker pool should be told.
type Directive struct {
	PerformanceFactor float64
	Action            Action
	Reason            string
}

// Paused reports whether this directive left the workload stopped
func (d Directive) Paused() bool {
	return d.Action == ActionPause || d.Action == ActionEmergencyStop
}

// PolicyFor maps a severity level to its directive. Warm is observe-only.
// The previous directive decides whether entering Normal resumes a stopped
// workload or is a quiet return to full capacity.
func PolicyFor(s State, prev Directive) Directive {
	switch s {
	case StateNormal:
		action := ActionNone
		if prev.Paused() {
			action = ActionResume
		}

		return Directive{PerformanceFactor: 1.0, Action: action, Reason: s.String()}
	case StateWarm:
		return Directive{PerformanceFactor: 1.0, Action: ActionNone, Reason: s.String()}
	case StateHot:
		return Directive{PerformanceFactor: 0.75, Action: ActionThrottle, Reason: s.String()}
	case StateCritical:
		return Directive{PerformanceFactor: 0.5, Action: ActionThrottle, Reason: s.String()}
	case StateEmergency:
		return Directive{PerformanceFactor: 0, Action: ActionEmergencyStop, Reason: s.String()}
	default:
		return Directive{PerformanceFactor: 1.0, Action: ActionNone, Reason: s.String()}
	}
}
