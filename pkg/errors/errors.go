// This package addresses the fundamental challenge that generic error handling presents in complex
// systems: when an error occurs, developers and operators need much more than just "something went wrong."
// They need to understand exactly what failed, why it failed, where it failed, and most importantly,
// what they can do about it. This package transforms error handling from reactive debugging into
// proactive problem resolution.
//
// Architecture and Design Philosophy:
//
// The error system is built around a hierarchical structure that starts with a foundational baseError
// and extends into domain-specific error types. This design provides several key advantages:
// it maintains consistency across all error types while allowing specialized context for different
// domains, enables rich error chaining that preserves the complete failure context, supports
// programmatic error handling through standardized error codes, and facilitates comprehensive
// logging and monitoring through structured error details.
//
// The system recognizes that different parts of a database engine fail in fundamentally different
// ways and require different types of contextual information for effective diagnosis and recovery.
// A validation error needs to know which field failed and what rule was violated. A storage error
// needs to know which file and byte offset were involved. A corruption error needs to know which
// chunk or field record failed to verify and what checksum was computed. By capturing this
// domain-specific context at the point of failure, the system enables much more intelligent error
// handling throughout the application stack.
//
// Error Classification and Codes:
//
// Central to this system is a comprehensive error code taxonomy that provides standardized
// categorization of failures. These codes serve multiple purposes: they enable programmatic
// error handling that doesn't rely on parsing error messages, they provide consistent
// categorization for monitoring and alerting systems, they facilitate error recovery logic
// by identifying specific failure modes, and they support internationalization by separating
// error identification from error presentation.
//
// The error codes are organized into several categories. Base codes cover fundamental failure
// types that can occur in any system: IO_ERROR for input/output failures, INVALID_INPUT for
// client-side validation problems, and INTERNAL_ERROR for unexpected system failures.
// Storage-specific codes handle the unique failure modes of the chunk file: FILE_EXISTS and
// CORRUPTION for on-disk integrity issues, PERMISSION_DENIED for access control problems,
// DISK_FULL for capacity issues, and FILESYSTEM_READONLY for mount-level failures.
// Validation codes address admission and encoding failures that occur before anything
// reaches disk: VALUE_TOO_LARGE, INVALID_UTF8, SHORT_BUFFER, SCHEMA_VIOLATION, and EMPTY_ENTRY.
//
// Usage Patterns and Best Practices:
//
// This error handling system is designed to support several key usage patterns that improve
// both developer experience and operational visibility.
//
// For error creation, the package encourages building errors with comprehensive context at
// the point of failure. This means capturing not just what went wrong, but where it went
// wrong, what was being attempted, and what conditions led to the failure. The fluent
// interface pattern makes this context capture both readable and maintainable.
//
// For error handling, the package supports both programmatic error handling (using error
// codes and type detection) and human-readable error reporting (using structured messages
// and details). This dual approach enables both robust automated error recovery and
// effective human troubleshooting.
//
// For error propagation, the package encourages preserving error context as errors flow
// through system layers while adding layer-specific context when appropriate. This creates
// a comprehensive audit trail of what happened during a failure, making root cause analysis
// much more effective.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsValidationError checks if the given error is a ValidationError or contains one in its error chain.
//
// Example usage:
//
//	if errors.IsValidationError(err) {
//	    // Handle validation-specific error recovery
//	    // Maybe reject the entry before it ever touches the chunk file
//	}
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stdErrors.As(err, &ve)
}

// IsStorageError determines if an error is related to chunk file operations, such as file I/O,
// disk space issues, or permission failures. Storage errors often require different handling
// strategies than other error types because they may indicate hardware issues, capacity
// problems, or access-control concerns that need immediate attention.
//
// Example usage:
//
//	if errors.IsStorageError(err) {
//	    storageErr, _ := errors.AsStorageError(err)
//	    switch storageErr.Code() {
//	    case ErrorCodeDiskFull:
//	        triggerCleanupProcedures()
//	    case ErrorCodePermissionDenied:
//	        alertAdministrator(storageErr.Path())
//	    }
//	}
func IsStorageError(err error) bool {
	var se *StorageError
	return stdErrors.As(err, &se)
}

// IsCorruptionError identifies errors caused by a chunk that failed its CRC-24 check, or a
// field record that decoded into a value violating an on-disk invariant. Corruption errors
// carry the chunk or field offset needed to locate the damaged region for repair or reporting.
//
// Example usage:
//
//	if errors.IsCorruptionError(err) {
//	    corruptErr, _ := errors.AsCorruptionError(err)
//	    log.Warn("chunk failed verification", "offset", corruptErr.ChunkOffset())
//	}
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return stdErrors.As(err, &ce)
}

// AsValidationError safely extracts a ValidationError from an error chain, providing access
// to validation-specific context such as which field failed, what rule was violated, and
// what values were provided versus expected. This extraction is essential for building
// meaningful error responses that help clients understand and correct their input.
//
// Example usage:
//
//	if validationErr, ok := errors.AsValidationError(err); ok {
//	    logData := map[string]interface{}{
//	        "field": validationErr.Field(),
//	        "rule": validationErr.Rule(),
//	        "provided": validationErr.Provided(),
//	        "expected": validationErr.Expected(),
//	    }
//	    logger.Error("Validation failed", logData)
//	}
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsStorageError extracts StorageError context from an error chain, providing access to
// storage-specific information such as file offsets, file names, and paths. This context
// is crucial for implementing storage error recovery procedures and for providing detailed
// information to system administrators and monitoring systems.
//
// Example usage:
//
//	if storageErr, ok := errors.AsStorageError(err); ok {
//	    errorContext := map[string]interface{}{
//	        "offset": storageErr.Offset(),
//	        "fileName": storageErr.FileName(),
//	        "path": storageErr.Path(),
//	        "errorCode": storageErr.Code(),
//	    }
//	    handleStorageFailure(errorContext)
//	}
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsCorruptionError extracts CorruptionError context from an error chain, providing access
// to the chunk offset, field offset, and checksum values recorded when the corruption was
// detected.
//
// Example usage:
//
//	if corruptErr, ok := errors.AsCorruptionError(err); ok {
//	    metrics.RecordCorruption(corruptErr.ChunkOffset())
//	}
func AsCorruptionError(err error) (*CorruptionError, bool) {
	var ce *CorruptionError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or returns
// ErrorCodeInternal for errors that don't have specific codes. This function provides
// a consistent way to categorize errors for monitoring and handling purposes.
//
// Example usage:
//
//	errorCode := errors.GetErrorCode(err)
//	metrics.IncrementErrorCounter(string(errorCode))
//
//	switch errorCode {
//	case errors.ErrorCodeDiskFull:
//	    triggerDiskSpaceAlert()
//	case errors.ErrorCodePermissionDenied:
//	    escalateToAdministrator()
//	}
func GetErrorCode(err error) ErrorCode {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		return ve.Code()
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		return se.Code()
	}

	// Try CorruptionError.
	if ce, ok := AsCorruptionError(err); ok {
		return ce.Code()
	}

	// For any other error, return a generic internal error code.
	return ErrorCodeInternal
}

// GetErrorDetails extracts structured details from any error that supports them,
// returning an empty map for errors without details. This function provides consistent
// access to additional error context regardless of the specific error type.
//
// Example usage:
//
//	details := errors.GetErrorDetails(err)
//	if len(details) > 0 {
//	    logger.WithFields(details).Error("Operation failed", "error", err.Error())
//	}
func GetErrorDetails(err error) map[string]any {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		if details := ve.Details(); details != nil {
			return details
		}
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}

	// Try CorruptionError.
	if ce, ok := AsCorruptionError(err); ok {
		if details := ce.Details(); details != nil {
			return details
		}
	}

	// Return empty map for errors without details.
	return make(map[string]any)
}

// ClassifyFileOpenError analyzes database file opening/creation failures and returns
// appropriate error codes based on the underlying system error. This provides much more
// specific information than a generic I/O error.
func ClassifyFileOpenError(err error, filePath string) error {
	// Check if this is a permission denied error.
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"insufficient permissions to open database file",
		).WithPath(filePath).
			WithDetail("operation", "file_open").
			WithDetail("suggestion", "check file permissions or run with elevated privileges")
	}

	// Check for disk space issues and other system-level conditions.
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"insufficient disk space to create database file",
				).WithPath(filePath).
					WithDetail("operation", "file_open").
					WithDetail("suggestion", "free up disk space")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"cannot create database file on read-only filesystem",
				).WithPath(filePath).
					WithDetail("operation", "file_open").
					WithDetail("suggestion", "remount filesystem with write permissions")
			}
		}
	}

	// For any other I/O errors during file opening.
	return NewStorageError(err, ErrorCodeIO, "failed to open database file").
		WithPath(filePath).
		WithDetail("operation", "file_open")
}

// ClassifyWriteError analyzes a write or sync failure against the database file and returns
// the appropriate StorageError, with the byte offset of the attempted write attached so the
// failure can be correlated with a specific chunk.
func ClassifyWriteError(err error, filePath string, offset int64) error {
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"cannot write to database file: insufficient disk space",
				).WithPath(filePath).
					WithOffset(offset).
					WithDetail("operation", "file_write").
					WithDetail("suggestion", "free up disk space before continuing")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"cannot write to database file: filesystem is read-only",
				).WithPath(filePath).
					WithOffset(offset).
					WithDetail("operation", "file_write").
					WithDetail("suggestion", "remount filesystem with write permissions")
			case syscall.EIO:
				// I/O error during write often indicates hardware or corruption issues.
				return NewStorageError(
					err, ErrorCodeIO,
					"I/O error writing to database file - possible hardware or corruption issue",
				).WithPath(filePath).
					WithOffset(offset).
					WithDetail("operation", "file_write").
					WithDetail("suggestion", "check filesystem integrity and hardware health")
			}
		}
	}

	// For any other write errors, provide generic I/O error with context.
	return NewStorageError(
		err, ErrorCodeIO, "failed to write to database file",
	).WithPath(filePath).WithOffset(offset).WithDetail("operation", "file_write")
}
