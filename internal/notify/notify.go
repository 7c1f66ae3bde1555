// Package notify hands controller events to an operator supplied command.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/command"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

const timeout = 5 * time.Second

type Kind string

const (
	SpeedChange Kind = "speed_change"
	Alert       Kind = "alert"
)

type Event struct {
	Kind    Kind
	Message string
}

// Notifier delivers an Event. Implementations must return once ctx is done.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type commandNotifier struct {
	name    string
	args    []string
	command command.Func
	logger  logger.Logger
}

type nopNotifier struct{}

// New returns a Notifier that runs commandLine with the event kind and
// message appended as the last two arguments. commandLine is split on
// whitespace; an empty one disables notifications.
func New(commandLine string, log logger.Logger) Notifier {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return Nop()
	}

	return &commandNotifier{
		name:    fields[0],
		args:    fields[1:],
		command: command.Run,
		logger:  log,
	}
}

func Nop() Notifier {
	return nopNotifier{}
}

func (n *commandNotifier) Notify(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), n.args...), string(e.Kind), e.Message)
	if _, stderr, err := n.command(ctx, n.name, args...); err != nil {
		return errors.New().WithData(ErrNotifyFailed, struct {
			Command string
			Kind    Kind
			Error   string
		}{
			Command: n.name,
			Kind:    e.Kind,
			Error:   strings.TrimSpace(fmt.Sprintf("%v: %s", err, stderr)),
		})
	}

	n.logger.Debug().Str("kind", string(e.Kind)).Msg("Notification sent")

	return nil
}

func (nopNotifier) Notify(context.Context, Event) error {
	return nil
}
