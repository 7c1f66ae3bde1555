package metrics

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("metrics_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("metrics_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("metrics_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("metrics_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("metrics_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed

	// Collection Errors
	ErrMetricsCollection = errors.ErrorCode("metrics_collection_failed")
	ErrInvalidMetrics    = errors.ErrorCode("metrics_invalid_metrics")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)

// phaseData is attached to storage errors to name the step that failed.
type phaseData struct {
	Phase string
	Path  string `json:",omitempty"`
	Table string `json:",omitempty"`
	Error string
}

func phaseError(code errors.ErrorCode, phase string, err error) errors.Error {
	return errors.New().WithData(code, phaseData{Phase: phase, Error: err.Error()})
}

func pathError(code errors.ErrorCode, phase, path string, err error) errors.Error {
	return errors.New().WithData(code, phaseData{Phase: phase, Path: path, Error: err.Error()})
}
