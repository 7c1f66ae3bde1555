package telemetry

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrInvalidConfig  = errors.ErrorCode("telemetry_invalid_config")
	ErrPublishFailed  = errors.ErrorCode("telemetry_publish_failed")
	ErrSnapshotFailed = errors.ErrorCode("telemetry_snapshot_failed")
)
