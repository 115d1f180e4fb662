package deploy

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/utils"
)

// Error classes reported by Classify.
const (
	ClassConfig       = "config"
	ClassPrecondition = "precondition"
	ClassDDL          = "ddl"
	ClassBuild        = "build"
	ClassSwap         = "swap"
	ClassCleanup      = "cleanup"
	ClassDriver       = "driver"
)

// Reason distinguishes the ways a precondition can be violated.
type Reason string

const (
	// GreenAlreadyExists means the green database exists and dropping it at
	// start was not allowed.
	GreenAlreadyExists Reason = "green database already exists"

	// DrainTimeout means the green database still existed after the last
	// drain iteration.
	DrainTimeout Reason = "drain timed out"

	// NameCollision means the green database appeared between the existence
	// check and its creation.
	NameCollision Reason = "green database name collision"
)

type (
	// ConfigurationError reports an invalid plan or missing credentials. It is
	// always raised before any DDL is issued.
	ConfigurationError struct {
		Msg string
		Err error
	}

	// PreconditionViolated reports that the warehouse is not in a state the
	// deployment can start from.
	PreconditionViolated struct {
		Reason   Reason
		Database utils.Identifier
		Err      error
	}

	// BuildFailed reports a non-zero exit from the Transformation Runner.
	BuildFailed struct {
		ExitCode   int
		StderrTail string
		Err        error
	}

	// SwapFailed reports an error from the swap itself. No automated recovery
	// is attempted; the state of both databases must be inspected manually.
	SwapFailed struct {
		Err error
	}

	// CleanupFailed reports an error from a compensating drop. It is logged and
	// never returned in place of the error that triggered the cleanup.
	CleanupFailed struct {
		Database utils.Identifier
		Err      error
	}

	// DriverError wraps any other warehouse error, e.g. connectivity,
	// authentication or a failed metadata query.
	DriverError struct {
		Err error
	}
)

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Msg, e.Err)
	}
	return "invalid configuration: " + e.Msg
}

func (e *ConfigurationError) Class() string { return ClassConfig }
func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *PreconditionViolated) Error() string {
	msg := fmt.Sprintf("precondition violated: %s (%s)", e.Reason, e.Database)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionViolated) Class() string { return ClassPrecondition }
func (e *PreconditionViolated) Unwrap() error { return e.Err }

func (e *BuildFailed) Error() string {
	msg := fmt.Sprintf("build failed with exit code %d", e.ExitCode)
	if e.StderrTail != "" {
		msg += ": " + e.StderrTail
	}
	return msg
}

func (e *BuildFailed) Class() string { return ClassBuild }
func (e *BuildFailed) Unwrap() error { return e.Err }

func (e *SwapFailed) Error() string { return "swap failed: " + e.Err.Error() }
func (e *SwapFailed) Class() string { return ClassSwap }
func (e *SwapFailed) Unwrap() error { return e.Err }
func (e *SwapFailed) Cause() error  { return e.Err }

func (e *CleanupFailed) Error() string {
	return fmt.Sprintf("failed to drop %s during cleanup: %v", e.Database, e.Err)
}

func (e *CleanupFailed) Class() string { return ClassCleanup }
func (e *CleanupFailed) Unwrap() error { return e.Err }
func (e *CleanupFailed) Cause() error  { return e.Err }

func (e *DriverError) Error() string { return e.Err.Error() }
func (e *DriverError) Class() string { return ClassDriver }
func (e *DriverError) Unwrap() error { return e.Err }
func (e *DriverError) Cause() error  { return e.Err }

// Classify returns the class of the first classified error in err's chain.
// Unclassified errors are driver errors; nil has no class.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var classified interface{ Class() string }
	if errors.As(err, &classified) {
		return classified.Class()
	}

	return ClassDriver
}

// ExitCode maps err to the process exit code.
//
//	nil           0
//	config        2
//	precondition  3
//	ddl           4
//	build         5
//	swap          6
//	anything else 1
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch Classify(err) {
	case ClassConfig:
		return 2
	case ClassPrecondition:
		return 3
	case ClassDDL:
		return 4
	case ClassBuild:
		return 5
	case ClassSwap:
		return 6
	default:
		return 1
	}
}

func configError(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}
