package control

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrInvalidOptions = errors.ErrorCode("control_invalid_options")
)
