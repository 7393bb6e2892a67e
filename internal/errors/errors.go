package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Format errors (FORMAT-001 to FORMAT-099)
	ErrCodeDigestMalformed    ErrorCode = "FORMAT-001"
	ErrCodeHashStoreMalformed ErrorCode = "FORMAT-002"

	// Ordering errors (TOPO-001 to TOPO-099)
	ErrCodeMissingRequirement ErrorCode = "TOPO-001"
	ErrCodeCyclicRequirement  ErrorCode = "TOPO-002"

	// Stylesheet errors (CSS-001 to CSS-099)
	ErrCodeCSSOrdering ErrorCode = "CSS-001"

	// Script errors (JS-001 to JS-099)
	ErrCodeJSMissingRequirement ErrorCode = "JS-001"
	ErrCodeJSModuleCycle        ErrorCode = "JS-002"
	ErrCodeJSFileCycle          ErrorCode = "JS-003"
	ErrCodeJSInvalidModule      ErrorCode = "JS-004"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileReadFailed     ErrorCode = "IO-001"
	ErrCodeMetadataLoadFailed ErrorCode = "IO-002"
	ErrCodeFileWriteFailed    ErrorCode = "IO-003"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanInvalidStep ErrorCode = "PLAN-001"
	ErrCodePlanStalled     ErrorCode = "PLAN-002"
	ErrCodePlanExtraStep   ErrorCode = "PLAN-003"

	// Step errors (STEP-001 to STEP-099)
	ErrCodeStepFailed     ErrorCode = "STEP-001"
	ErrCodeCompilerFailed ErrorCode = "STEP-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigUnreadable ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG-002"
)

// BuildError represents an error with code, suggestions, and documentation
type BuildError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BuildError carrying the same code.
// This lets callers match on a code with errors.Is(err, errors.New(code, "")).
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new BuildError
func New(code ErrorCode, message string) *BuildError {
	return &BuildError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new BuildError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *BuildError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new BuildError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *BuildError {
	return &BuildError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *BuildError) WithSuggestion(suggestion string) *BuildError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *BuildError) WithSuggestions(suggestions ...string) *BuildError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *BuildError) WithDocs(url string) *BuildError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the outermost BuildError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// HasCode reports whether any BuildError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if be, ok := err.(*BuildError); ok && be.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// As is errors.As, re-exported so callers importing this package under the
// name "errors" keep access to it.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported for the same reason as As.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Common error constructors for frequently used errors

// NewFormatError reports text that could not be decoded.
func NewFormatError(code ErrorCode, what string, cause error) *BuildError {
	return Wrap(code, fmt.Sprintf("malformed %s", what), cause)
}

// NewFileReadError creates a file read error
func NewFileReadError(path string, cause error) *BuildError {
	return Wrap(ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), cause).
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileWriteError creates a file write error
func NewFileWriteError(path string, cause error) *BuildError {
	return Wrap(ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), cause).
		WithSuggestion("Check that the output directory is writable")
}

// NewStepFailedError reports a step whose execution or skip failed.
// The plan never records a digest for such a step, so the next run retries it.
func NewStepFailedError(stepKey string, cause error) *BuildError {
	return Wrap(ErrCodeStepFailed, fmt.Sprintf("step %s failed", stepKey), cause).
		WithSuggestion("Fix the reported problem and rerun; the step will execute from scratch")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *BuildError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check buildplan.yaml against the documented layout")
}
