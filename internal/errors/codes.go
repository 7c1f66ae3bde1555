package errors

// Common error codes
const (
	// System errors
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrOpenLogFile     ErrorCode = "open_log_file_failed"

	// Initialization errors
	ErrInitFailed       ErrorCode = "initialization_failed"
	ErrShutdownFailed   ErrorCode = "shutdown_failed"
	ErrPrecondition     ErrorCode = "precondition_failed"
	ErrAlreadyRunning   ErrorCode = "already_running"
	ErrPIDFileFailed    ErrorCode = "pid_file_failed"
	ErrRestoreAutoFan   ErrorCode = "restore_auto_fan_failed"
	ErrStatusServerFail ErrorCode = "status_server_failed"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInvalidArgument:  "Invalid argument provided",
	ErrInvalidConfig:    "Invalid configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrReadConfig:       "Failed to read config file",
	ErrInvalidInterval:  "Invalid interval value",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrOpenLogFile:      "Failed to open log file",
	ErrInitFailed:       "Initialization failed",
	ErrShutdownFailed:   "Shutdown failed",
	ErrPrecondition:     "Required dependency missing",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrPIDFileFailed:    "Failed to manage PID file",
	ErrRestoreAutoFan:   "Failed to restore automatic fan control",
	ErrStatusServerFail: "Status server failed",
	ErrTimeout:          "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
