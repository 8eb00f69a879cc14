package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := errors.New("permission denied")

	// When: wrapping it
	err := New(ErrCodeFilePermission, "cannot read file", original)

	// Then: the chain still reaches the original
	require.NotNil(t, err)
	assert.Equal(t, original, errors.Unwrap(err))
	assert.True(t, errors.Is(err, original))
}

func TestLexError_Error_IncludesCodeAndCause(t *testing.T) {
	tests := []struct {
		name     string
		err      *LexError
		expected string
	}{
		{
			name:     "without cause",
			err:      New(ErrCodeQueryEmpty, "query is required", nil),
			expected: "[ERR_404_QUERY_EMPTY] query is required",
		},
		{
			name:     "with cause",
			err:      New(ErrCodeToolMissing, "pdftoppm not found", errors.New("exec: not found")),
			expected: "[ERR_208_TOOL_MISSING] pdftoppm not found: exec: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestLexError_Is_MatchesByCode(t *testing.T) {
	// Given: a sentinel and a wrapped instance with the same code
	sentinel := New(ErrCodeDocumentNotFound, "document not found", nil)
	err := fmt.Errorf("lookup: %w", New(ErrCodeDocumentNotFound, "no such path", nil))

	// Then: errors.Is matches by code, not identity
	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, New(ErrCodeQueryEmpty, "", nil)))
}

func TestNew_DerivesCategorySeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeToolTimeout, CategoryIO, SeverityWarning, true},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeReindexRunning, CategoryInternal, SeverityInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestWrap_KeepsExistingLexError(t *testing.T) {
	inner := New(ErrCodeFileCorrupt, "bad pdf", nil)

	assert.Same(t, inner, Wrap(ErrCodeInternal, fmt.Errorf("extract: %w", inner)))
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
	assert.Equal(t, ErrCodeInternal, Wrap(ErrCodeInternal, errors.New("boom")).Code)
}

func TestGetCode_WalksChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeFileTooLarge, "too big", nil))

	assert.Equal(t, ErrCodeFileTooLarge, GetCode(err))
	assert.True(t, HasCode(err, ErrCodeFileTooLarge))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty query", New(ErrCodeQueryEmpty, "q", nil), http.StatusBadRequest},
		{"invalid input", ValidationError("bad limit", nil), http.StatusBadRequest},
		{"unknown document", New(ErrCodeDocumentNotFound, "nf", nil), http.StatusNotFound},
		{"rate limited", New(ErrCodeRateLimited, "slow down", nil), http.StatusTooManyRequests},
		{"already running", New(ErrCodeReindexRunning, "running", nil), http.StatusAccepted},
		{"indexing disabled", New(ErrCodeIndexingDisabled, "disabled", nil), http.StatusConflict},
		{"backend down", NetworkError("down", nil), http.StatusServiceUnavailable},
		{"plain error", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage_HidesInternals(t *testing.T) {
	// Given: an internal error whose cause names a file path
	internal := InternalError("scan failed", errors.New("open /srv/secret/db: denied"))

	// Then: only a generic message is exposed
	assert.Equal(t, "internal error", PublicMessage(internal))
	assert.Equal(t, "internal error", PublicMessage(errors.New("sql: no rows")))

	// And: validation messages pass through
	assert.Equal(t, "query is required", PublicMessage(New(ErrCodeQueryEmpty, "query is required", nil)))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeNoRoots, "no document roots configured", nil).
		WithSuggestion("set LEXINDEX_ROOTS=/data/mevzuat:mevzuat")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: no document roots configured")
	assert.Contains(t, out, "Hint: set LEXINDEX_ROOTS")
	assert.Contains(t, out, "Code: ERR_103_NO_ROOTS")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForLog_IncludesDetails(t *testing.T) {
	err := New(ErrCodeExtractFailed, "extract failed", errors.New("eof")).WithDetail("path", "/a.pdf")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeExtractFailed, fields["error_code"])
	assert.Equal(t, "eof", fields["cause"])
	assert.Equal(t, "/a.pdf", fields["detail_path"])
}
