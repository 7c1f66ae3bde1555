package control

import "codeberg.org/mutker/ipmifanctl/internal/fan"

// State is the controller's memory between iterations. It is owned by the
// loop goroutine and never persisted.
type State struct {
	// LastSpeed is the level most recently applied to the BMC.
	LastSpeed fan.Level
	// LastUsage is the previous sample's per-CPU usage, used for spike detection.
	LastUsage []float64
	// LastTriggerTemp is the MaxTemp at the last successfully applied change.
	LastTriggerTemp int
}

// NewState returns the state the controller starts with after forcing
// manual mode: quiet fans, zero usage history, no trigger temperature.
func NewState(cpus int) State {
	return State{
		LastSpeed: fan.Quiet,
		LastUsage: make([]float64, cpus),
	}
}

// Commit records a successfully applied level.
func (s *State) Commit(level fan.Level, maxTemp int) {
	s.LastSpeed = level
	s.LastTriggerTemp = maxTemp
}

func (s State) withUsage(usage []float64) State {
	s.LastUsage = append([]float64(nil), usage...)
	return s
}
