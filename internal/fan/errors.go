package fan

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrManualModeFailed = errors.ErrorCode("fan_manual_mode_failed")
	ErrAutoModeFailed   = errors.ErrorCode("fan_auto_mode_failed")
	ErrSetSpeedFailed   = errors.ErrorCode("fan_set_speed_failed")
	ErrInvalidLevel     = errors.ErrorCode("fan_invalid_level")
)
