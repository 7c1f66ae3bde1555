package main

import (
	"context"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"codeberg.org/mutker/ipmifanctl/internal/pid"
)

// startup holds what must hold before the control loop may run.
type startup struct {
	pidFile     string
	restoreAuto bool
	lookPath    func() error
	fans        fan.Controller
}

// acquire takes the PID file, checks for ipmitool, switches the fans to
// manual mode and writes the initial quiet level, stopping at the first
// failure. release undoes whatever succeeded and is never nil.
func (s startup) acquire(ctx context.Context) (release func(), err error) {
	var undo []func()
	release = func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if err := pid.Write(s.pidFile); err != nil {
		logError(err, "Failed to acquire PID file")
		return release, err
	}
	undo = append(undo, func() {
		if err := pid.Remove(s.pidFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	})

	if err := s.lookPath(); err != nil {
		err = errors.New().Wrap(errors.ErrPrecondition, err)
		logError(err, "ipmitool is not available")
		return release, err
	}

	if err := s.fans.EnableManual(ctx); err != nil {
		logError(err, "Failed to enable manual fan control")
		return release, err
	}
	logger.Info().Msg("Manual fan control enabled")
	if s.restoreAuto {
		undo = append(undo, func() { restoreAuto(s.fans) })
	}

	if err := s.fans.SetLevel(ctx, fan.Quiet); err != nil {
		logError(err, "Failed to initialize fan speed")
		return release, err
	}
	logger.Info().Stringer("fan_level", fan.Quiet).Msg("Initial fan speed set")

	return release, nil
}
