// Package sensor acquires and validates one chassis sample per control
// loop iteration: inlet, exhaust and per-CPU temperatures from the BMC and
// per-CPU utilization from the host.
package sensor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

// Sample is a validated reading. CPUTemps and CPUUsages are index aligned,
// one entry per physical CPU. Treat it as immutable.
type Sample struct {
	InletTemp   int
	ExhaustTemp int
	CPUTemps    []int
	CPUUsages   []float64
}

// MaxTemp is the highest of the inlet, exhaust and CPU temperatures.
func (s Sample) MaxTemp() int {
	maxTemp := max(s.InletTemp, s.ExhaustTemp)
	for _, t := range s.CPUTemps {
		maxTemp = max(maxTemp, t)
	}

	return maxTemp
}

// RawSample holds sensor values as text, exactly as read.
type RawSample struct {
	Inlet     string
	Exhaust   string
	CPUTemps  []string
	CPUUsages []string
}

// Validate converts raw into a Sample. Temperatures must be non-negative
// numbers (fractions are truncated, ipmitool prints "24.000"); usages must be
// finite percentages in [0,100]; there must be at least one CPU and as many
// usages as CPU temperatures. Every offending field is reported.
func Validate(raw RawSample) (Sample, error) {
	invalid := InvalidFields{}

	s := Sample{
		CPUTemps:  make([]int, len(raw.CPUTemps)),
		CPUUsages: make([]float64, len(raw.CPUUsages)),
	}

	var ok bool
	if s.InletTemp, ok = parseTemp(raw.Inlet); !ok {
		invalid["inlet"] = raw.Inlet
	}
	if s.ExhaustTemp, ok = parseTemp(raw.Exhaust); !ok {
		invalid["exhaust"] = raw.Exhaust
	}
	for i, v := range raw.CPUTemps {
		if s.CPUTemps[i], ok = parseTemp(v); !ok {
			invalid[fmt.Sprintf("cpu%d_temp", i+1)] = v
		}
	}
	for i, v := range raw.CPUUsages {
		if s.CPUUsages[i], ok = parseUsage(v); !ok {
			invalid[fmt.Sprintf("cpu%d_usage", i+1)] = v
		}
	}

	if len(raw.CPUTemps) == 0 || len(raw.CPUTemps) != len(raw.CPUUsages) {
		invalid["cpu_count"] = fmt.Sprintf("temps=%d usages=%d", len(raw.CPUTemps), len(raw.CPUUsages))
	}

	if len(invalid) > 0 {
		return Sample{}, errors.New().WithData(ErrInvalidSample, invalid)
	}

	return s, nil
}

func parseTemp(v string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}

	return int(f), true
}

func parseUsage(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 100 {
		return 0, false
	}

	return f, true
}
