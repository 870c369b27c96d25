package telemetry

import "github.com/okkern/thermactl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("telemetry_invalid_db_path")

	// Storage Errors
	ErrStorageInit       = errors.ErrorCode("telemetry_storage_init_failed")
	ErrStorageClose      = errors.ErrorCode("telemetry_storage_close_failed")
	ErrTransactionFailed = errors.ErrorCode("telemetry_transaction_failed")
	ErrRecordFailed      = errors.ErrorCode("telemetry_record_failed")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("telemetry_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("telemetry_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("telemetry_schema_migration_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("telemetry_operation_timeout")
	ErrServiceShutdown  = errors.ErrorCode("telemetry_service_shutdown_failed")
)

var errFactory = errors.New()
