package fan

import (
	"context"
	"sync"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/ipmi"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

// Dell PowerEdge OEM fan commands (NetFn 0x30, cmd 0x30).
var (
	cmdManualMode = []string{"0x30", "0x30", "0x01", "0x00"}
	cmdAutoMode   = []string{"0x30", "0x30", "0x01", "0x01"}
	cmdSetAllFans = []string{"0x30", "0x30", "0x02", "0xff"}
)

type rawClient interface {
	Raw(ctx context.Context, data ...string) (string, error)
	FanRPM(ctx context.Context) (int, bool, error)
}

type fanController struct {
	client rawClient
	mu     sync.Mutex
	logger logger.Logger
}

// NewController returns a Controller that drives the BMC through ipmitool.
func NewController(client *ipmi.Client, log logger.Logger) Controller {
	return newController(client, log)
}

func newController(client rawClient, log logger.Logger) *fanController {
	return &fanController{
		client: client,
		logger: log,
	}
}

func (fc *fanController) EnableManual(ctx context.Context) error {
	errFactory := errors.New()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, err := fc.client.Raw(ctx, cmdManualMode...); err != nil {
		return errFactory.Wrap(ErrManualModeFailed, err)
	}
	fc.logger.Debug().Msg("Manual fan control: enabled")

	return nil
}

func (fc *fanController) EnableAuto(ctx context.Context) error {
	errFactory := errors.New()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, err := fc.client.Raw(ctx, cmdAutoMode...); err != nil {
		return errFactory.Wrap(ErrAutoModeFailed, err)
	}
	fc.logger.Debug().Msg("Auto fan control: enabled")

	return nil
}

func (fc *fanController) SetLevel(ctx context.Context, level Level) error {
	errFactory := errors.New()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if !level.Valid() {
		return errFactory.WithData(ErrInvalidLevel, int(level))
	}

	if _, err := fc.client.Raw(ctx, append(cmdSetAllFans, level.Hex())...); err != nil {
		return errFactory.Wrap(ErrSetSpeedFailed, err)
	}
	fc.logger.Debug().Stringer("level", level).Msg("Set fan speed")

	return nil
}

func (fc *fanController) RPM(ctx context.Context) (int, bool) {
	rpm, ok, err := fc.client.FanRPM(ctx)
	if err != nil {
		fc.logger.Debug().Err(err).Msg("Failed to read fan RPM")
		return 0, false
	}

	return rpm, ok
}
