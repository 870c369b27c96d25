package thermal_test

import (
	"testing"

	"github.com/okkern/thermactl/internal/thermal"
	"github.com/stretchr/testify/assert"
)

func TestPolicyMapping(t *testing.T) {
	cases := []struct {
		state      thermal.State
		wantFactor float64
		wantAction thermal.Action
	}{
		{thermal.StateNormal, 1.0, thermal.ActionNone},
		{thermal.StateWarm, 1.0, thermal.ActionNone},
		{thermal.StateHot, 0.75, thermal.ActionThrottle},
		{thermal.StateCritical, 0.5, thermal.ActionThrottle},
		{thermal.StateEmergency, 0, thermal.ActionEmergencyStop},
	}

	for _, tc := range cases {
		directive := thermal.PolicyFor(tc.state, thermal.Directive{})
		assert.InDelta(t, tc.wantFactor, directive.PerformanceFactor, 1e-9,
			"factor for %s", tc.state)
		assert.Equal(t, tc.wantAction, directive.Action, "action for %s", tc.state)
		assert.Equal(t, tc.state.String(), directive.Reason)
	}
}

func TestPolicyNormalResumesAfterPause(t *testing.T) {
	paused := thermal.PolicyFor(thermal.StateEmergency, thermal.Directive{})
	assert.True(t, paused.Paused())

	directive := thermal.PolicyFor(thermal.StateNormal, paused)
	assert.Equal(t, thermal.ActionResume, directive.Action)
	assert.InDelta(t, 1.0, directive.PerformanceFactor, 1e-9)
}

func TestPolicyNormalAfterThrottleIsQuiet(t *testing.T) {
	throttled := thermal.PolicyFor(thermal.StateHot, thermal.Directive{})
	assert.False(t, throttled.Paused())

	directive := thermal.PolicyFor(thermal.StateNormal, throttled)
	assert.Equal(t, thermal.ActionNone, directive.Action,
		"returning to Normal from a throttle needs no pool action tag")
}

func TestPolicyIsDeterministic(t *testing.T) {
	prev := thermal.Directive{}
	first := thermal.PolicyFor(thermal.StateCritical, prev)
	second := thermal.PolicyFor(thermal.StateCritical, prev)
	assert.Equal(t, first, second)
}
