package telemetry

import (
	"context"
	"time"
)

// Publisher shares the latest maximum temperature with other processes.
type Publisher interface {
	Publish(maxTemp int) error
}

// Snapshotter collects the extended host state logged every few iterations.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*SystemSnapshot, error)
}

type SystemSnapshot struct {
	Timestamp time.Time
	Memory    MemoryMetrics
	Frequency FrequencyMetrics
}

type MemoryMetrics struct {
	Total       uint64
	Used        uint64
	UsedPercent float64
}

// FrequencyMetrics holds current scaling frequencies in MHz, indexed by
// logical CPU. Empty when cpufreq is not exposed.
type FrequencyMetrics struct {
	PerCPU  []int
	Average int
}
