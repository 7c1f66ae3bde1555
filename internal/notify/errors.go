package notify

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrNotifyFailed = errors.ErrorCode("notify_failed")
)
