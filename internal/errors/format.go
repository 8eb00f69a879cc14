package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var le *LexError
	if !errors.As(err, &le) {
		le = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", le.Message))
	if le.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", le.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", le.Code))
	return sb.String()
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var le *LexError
	if !errors.As(err, &le) {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": le.Code,
		"message":    le.Message,
		"category":   string(le.Category),
		"severity":   string(le.Severity),
		"retryable":  le.Retryable,
	}
	if le.Cause != nil {
		result["cause"] = le.Cause.Error()
	}
	for k, v := range le.Details {
		result["detail_"+k] = v
	}
	return result
}

// PublicMessage returns the message that may be shown to API callers.
// Errors that are not LexErrors are reported generically so internal
// paths and driver messages never leak.
func PublicMessage(err error) string {
	var le *LexError
	if errors.As(err, &le) && le.Category != CategoryInternal {
		return le.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to the HTTP status code the API returns for it.
func HTTPStatus(err error) int {
	switch code := GetCode(err); code {
	case "":
		return http.StatusInternalServerError
	case ErrCodeDocumentNotFound, ErrCodeFileNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeReindexRunning:
		return http.StatusAccepted
	case ErrCodeIndexingDisabled:
		return http.StatusConflict
	default:
		switch categoryFromCode(code) {
		case CategoryValidation:
			return http.StatusBadRequest
		case CategoryNetwork:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
}
