package ipmi

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	ErrToolNotFound  = errors.ErrorCode("ipmi_tool_not_found")
	ErrCommandFailed = errors.ErrorCode("ipmi_command_failed")
	ErrEmptyCommand  = errors.ErrorCode("ipmi_empty_command")
)
