package sensor

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrInvalidSample = errors.ErrorCode("sensor_invalid_sample")
	ErrReadFailed    = errors.ErrorCode("sensor_read_failed")
)

// InvalidFields maps each rejected field (e.g. "inlet", "cpu2_usage") to the
// raw text that failed validation. It is the data of an ErrInvalidSample error.
type InvalidFields map[string]string
