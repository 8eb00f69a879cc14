// Package errors provides structured error handling for lexindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and extraction errors
//   - 3XX: Network and backend errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk and extraction errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network or remote backend errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeNoRoots        = "ERR_103_NO_ROOTS"
	// ErrCodeIndexingDisabled means neither the embedded nor the remote
	// backend is enabled, so nothing can be written.
	ErrCodeIndexingDisabled = "ERR_104_INDEXING_DISABLED"

	// IO errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission    = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull          = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge      = "ERR_204_FILE_TOO_LARGE"
	ErrCodeCorruptIndex      = "ERR_205_CORRUPT_INDEX"
	ErrCodeFileCorrupt       = "ERR_206_FILE_CORRUPT"
	ErrCodeUnsupportedFormat = "ERR_207_UNSUPPORTED_FORMAT"
	ErrCodeToolMissing       = "ERR_208_TOOL_MISSING"
	ErrCodeToolTimeout       = "ERR_209_TOOL_TIMEOUT"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeRemoteRejected     = "ERR_303_REMOTE_REJECTED"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery     = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty       = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong     = "ERR_405_QUERY_TOO_LONG"
	ErrCodeInvalidPath      = "ERR_406_INVALID_PATH"
	ErrCodeDocumentNotFound = "ERR_407_DOCUMENT_NOT_FOUND"
	ErrCodeRateLimited      = "ERR_429_RATE_LIMITED"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeBackendFailed  = "ERR_502_BACKEND_FAILED"
	ErrCodeSearchFailed   = "ERR_503_SEARCH_FAILED"
	ErrCodeExtractFailed  = "ERR_504_EXTRACT_FAILED"
	ErrCodeIndexFailed    = "ERR_505_INDEX_FAILED"
	ErrCodeReindexRunning = "ERR_506_REINDEX_RUNNING"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull:
		return SeverityFatal
	case ErrCodeReindexRunning:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeToolTimeout, ErrCodeReindexRunning:
		return true
	default:
		return false
	}
}
