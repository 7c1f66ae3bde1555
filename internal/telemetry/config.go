package telemetry

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	defaultFilePerm    = 0o644
	defaultMaxTempFile = "/tmp/ipmifanctl.maxtemp"
	defaultSysfsRoot   = "/sys/devices/system/cpu"
)

type Config struct {
	// MaxTempFile receives the latest maximum temperature as a bare integer.
	MaxTempFile string
	// SysfsRoot is the cpu directory holding cpuN/cpufreq/scaling_cur_freq.
	SysfsRoot string
}

func DefaultConfig() Config {
	return Config{
		MaxTempFile: defaultMaxTempFile,
		SysfsRoot:   defaultSysfsRoot,
	}
}

func (c Config) Validate() error {
	if c.MaxTempFile == "" {
		return errors.New().WithMessage(ErrInvalidConfig, "max temperature file path is empty")
	}

	return nil
}
