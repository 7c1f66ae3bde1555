package metrics

import (
	"context"
	"time"
)

// Collector records one entry per control loop decision.
type Collector interface {
	Record(ctx context.Context, snapshot *DecisionSnapshot) error
	Close() error
}

// Repository defines the interface for decision history storage
type Repository interface {
	Record(snapshot *DecisionSnapshot) error
	Close() error
}

// DecisionSnapshot is one row of decision history.
type DecisionSnapshot struct {
	Timestamp   time.Time
	Temperature TempMetrics
	Usage       UsageMetrics
	Fan         FanMetrics
	Decision    DecisionMetrics
}

type TempMetrics struct {
	Inlet   int
	Exhaust int
	CPUMax  int
	Max     int
	Delta   int
}

type UsageMetrics struct {
	Max   float64
	Spike bool
}

type FanMetrics struct {
	// Previous is the commanded level before this decision, Target the
	// level the decision asked for (0 when unchanged).
	Previous int
	Target   int
}

type DecisionMetrics struct {
	Reason  string
	Success bool
}
