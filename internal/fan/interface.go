package fan

import (
	"context"
	"fmt"
)

// Controller is the actuator side of the control loop.
type Controller interface {
	// EnableManual puts the BMC fan subsystem into manual override. Idempotent.
	EnableManual(ctx context.Context) error
	// EnableAuto hands fan control back to the BMC.
	EnableAuto(ctx context.Context) error
	// SetLevel sets every chassis fan to the given duty cycle.
	SetLevel(ctx context.Context, level Level) error
	// RPM returns the average chassis fan speed, ok=false when unknown.
	RPM(ctx context.Context) (rpm int, ok bool)
}

// Level is a fan duty cycle in percent.
type Level int

const (
	// Unchanged marks a decision that proposes no new level.
	Unchanged Level = 0

	Quiet    Level = 25
	Idle     Level = 40
	Elevated Level = 60
	High     Level = 80
	Max      Level = 100
)

// Levels lists every level the controller may command, lowest first.
var Levels = []Level{Quiet, Idle, Elevated, High, Max}

// Valid reports whether l is one of Levels.
func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}

	return false
}

// Hex is the duty cycle byte sent to the BMC, e.g. "0x3c" for 60%.
func (l Level) Hex() string {
	return fmt.Sprintf("0x%02x", int(l))
}

func (l Level) String() string {
	if l == Unchanged {
		return "unchanged"
	}

	return fmt.Sprintf("%d%%", int(l))
}
