// Package control turns validated sensor samples into fan levels and runs
// the sample, decide, actuate loop.
package control

import (
	"fmt"

	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/sensor"
)

const reasonNoMatch = "no rule matched"

// Decision is the outcome of one iteration.
type Decision struct {
	// Speed is the level to apply, or fan.Unchanged.
	Speed   fan.Level
	Reason  string
	Success bool

	MaxTemp   int
	TempDelta int
	Spike     bool
}

// Decide picks a fan level for sample given the controller state. It is
// pure: the returned State differs from st only in LastUsage, which always
// holds the sample's usage vector. LastSpeed and LastTriggerTemp are left
// for the caller to Commit once the level has actually been applied.
func Decide(sample sensor.Sample, st State) (Decision, State) {
	in := input{
		maxTemp:   sample.MaxTemp(),
		lastSpeed: st.LastSpeed,
	}
	in.tempDelta = in.maxTemp - st.LastTriggerTemp

	for i, usage := range sample.CPUUsages {
		in.maxUsage = max(in.maxUsage, usage)

		var before float64
		if i < len(st.LastUsage) {
			before = st.LastUsage[i]
		}
		if usage-before > spikeThreshold && !in.spike {
			in.spike = true
			in.spikeDetail = fmt.Sprintf("CPU%d usage %.1f%% -> %.1f%%", i+1, before, usage)
		}
	}

	d := Decision{
		Speed:     fan.Unchanged,
		Reason:    reasonNoMatch,
		Success:   true,
		MaxTemp:   in.maxTemp,
		TempDelta: in.tempDelta,
		Spike:     in.spike,
	}

	for _, r := range rules {
		if !r.match(in) {
			continue
		}
		d.Reason = r.reason(in)
		if r.level != st.LastSpeed {
			d.Speed = r.level
		}
		break
	}

	return d, st.withUsage(sample.CPUUsages)
}
