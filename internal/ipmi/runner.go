package ipmi

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/command"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

// Runner executes one ipmitool invocation and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

type Config struct {
	// Path is the ipmitool binary.
	Path string
	// Interface is passed as `-I <interface>`; empty omits the flag.
	Interface  string
	Sudo       bool
	Retries    int
	RetryDelay time.Duration
}

type execRunner struct {
	cfg     Config
	command command.Func
	logger  logger.Logger
}

// NewRunner returns a Runner that shells out to ipmitool, retrying failed
// invocations cfg.Retries times in total.
func NewRunner(cfg Config, log logger.Logger) Runner {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}

	return &execRunner{cfg: cfg, command: command.Run, logger: log}
}

// LookPath verifies that the configured ipmitool (and sudo, when used) can be executed.
func LookPath(cfg Config) error {
	errFactory := errors.New()

	tools := []string{cfg.Path}
	if cfg.Sudo {
		tools = append(tools, "sudo")
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return errFactory.WithData(ErrToolNotFound, tool)
		}
	}

	return nil
}

func (r *execRunner) Run(ctx context.Context, args ...string) (string, error) {
	errFactory := errors.New()

	if len(args) == 0 {
		return "", errFactory.New(ErrEmptyCommand)
	}

	name, argv := r.commandLine(args)

	var lastErr error
	for attempt := 1; attempt <= r.cfg.Retries; attempt++ {
		stdout, stderr, err := r.command(ctx, name, argv...)
		if err == nil {
			return strings.TrimSuffix(stdout, "\n"), nil
		}

		lastErr = fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr))
		r.logger.Warn().
			Int("attempt", attempt).
			Int("retries", r.cfg.Retries).
			Str("command", strings.Join(args, " ")).
			Err(lastErr).
			Msg("ipmitool attempt failed")

		if attempt == r.cfg.Retries {
			break
		}

		select {
		case <-ctx.Done():
			return "", errFactory.Wrap(errors.ErrTimeout, ctx.Err())
		case <-time.After(r.cfg.RetryDelay):
		}
	}

	return "", errFactory.WithData(ErrCommandFailed, struct {
		Command string
		Error   string
	}{
		Command: strings.Join(args, " "),
		Error:   lastErr.Error(),
	})
}

func (r *execRunner) commandLine(args []string) (string, []string) {
	argv := make([]string, 0, len(args)+4)
	if r.cfg.Interface != "" {
		argv = append(argv, "-I", r.cfg.Interface)
	}
	argv = append(argv, args...)

	if r.cfg.Sudo {
		return "sudo", append([]string{r.cfg.Path}, argv...)
	}

	return r.cfg.Path, argv
}
