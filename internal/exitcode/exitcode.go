package exitcode

import (
	"context"
	"os"
	"strings"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2

	// OrderingError indicates sources whose declarations cannot be ordered
	OrderingError = 3

	// StepFailed indicates a step or external compiler failed
	StepFailed = 4

	// IOError indicates a file could not be read or written
	IOError = 5

	// PlanError indicates steps that can never become ready
	PlanError = 6

	// Interrupted indicates the build was cancelled
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// codeStatus maps the innermost error code category to an exit status.
var codeStatus = map[string]int{
	"CONFIG": UsageError,
	"TOPO":   OrderingError,
	"CSS":    OrderingError,
	"JS":     OrderingError,
	"STEP":   StepFailed,
	"IO":     IOError,
	"FORMAT": IOError,
	"PLAN":   PlanError,
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Step failures report the category of their cause, so a stylesheet cycle
// found while running a step exits with OrderingError.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	if code := innermostCode(err); code != "" {
		category, _, _ := strings.Cut(string(code), "-")
		if status, ok := codeStatus[category]; ok {
			return status
		}
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors from cobra
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

func innermostCode(err error) errors.ErrorCode {
	var code errors.ErrorCode
	for err != nil {
		var be *errors.BuildError
		if !errors.As(err, &be) {
			break
		}
		code = be.Code
		err = be.Cause
	}
	return code
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case OrderingError:
		return "Sources cannot be ordered (missing or cyclic requirement)"
	case StepFailed:
		return "Build step failed"
	case IOError:
		return "File read or write error"
	case PlanError:
		return "Plan cannot make progress"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
