package status

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrServeFailed    = errors.ErrStatusServerFail
	ErrShutdownFailed = errors.ErrShutdownFailed
)
