package control

import (
	"fmt"

	"codeberg.org/mutker/ipmifanctl/internal/fan"
)

const (
	// spikeThreshold is the per-CPU usage rise, in percentage points between
	// two consecutive samples, above which a spike is reported.
	spikeThreshold = 30
	// hysteresis is the minimum drift from LastTriggerTemp for the
	// pre-cool and idle rules.
	hysteresis = 3
	// idleHoldTemp keeps the controller at 60% until MaxTemp falls to it.
	// TODO: confirm 37°C with the chassis owner; at 38-39°C a fan already
	// at 60% never steps down to 40%.
	idleHoldTemp = 37
)

// input is everything a rule may look at.
type input struct {
	maxTemp     int
	tempDelta   int
	maxUsage    float64
	spike       bool
	spikeDetail string
	lastSpeed   fan.Level
}

type rule struct {
	level  fan.Level
	match  func(in input) bool
	reason func(in input) string
}

func staticReason(s string) func(input) string {
	return func(input) string { return s }
}

func drifted(in input) bool {
	return abs(in.tempDelta) >= hysteresis
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		level: fan.Max,
		match: func(in input) bool {
			return in.maxTemp >= 55 || in.maxUsage > 75
		},
		reason: staticReason("high load"),
	},
	{
		level: fan.High,
		match: func(in input) bool {
			return in.maxTemp >= 45 || in.maxUsage > 50
		},
		reason: staticReason("moderate load"),
	},
	{
		level: fan.Elevated,
		match: func(in input) bool {
			return (in.maxTemp >= 40 || in.spike) && drifted(in)
		},
		reason: func(in input) string {
			if in.spike {
				return "pre-cool: " + in.spikeDetail
			}
			return fmt.Sprintf("temp ≥ 40°C, delta %d", in.tempDelta)
		},
	},
	{
		level: fan.Idle,
		match: func(in input) bool {
			return in.maxTemp >= 35 &&
				(in.lastSpeed != fan.Elevated || in.maxTemp-idleHoldTemp <= 0) &&
				drifted(in)
		},
		reason: staticReason("idle range"),
	},
	{
		level: fan.Quiet,
		match: func(in input) bool {
			return in.maxTemp < 33 || (in.lastSpeed != fan.Idle && in.maxTemp < 35)
		},
		reason: staticReason("low temp"),
	},
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
