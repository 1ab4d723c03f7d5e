package supervise

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInterruptedWait = errors.New("supervise: wait interrupted")
	ErrInvalidPolicy   = errors.New("supervise: invalid check error policy")
)

// Host is the narrow view of the server the liveness monitor needs. Each
// method must be safe to call concurrently with the server's own work.
type Host interface {
	Alive() bool
	CheckConnections(ctx context.Context) error
	LoggerAlive() bool
	RestartLogger() error
	CheckStructure(ctx context.Context) error
}

// ShutdownTarget is the server's orderly shutdown entry point.
type ShutdownTarget interface {
	RequestShutdown(ctx context.Context) error
}

// Policy decides what the monitor does with a failed check step.
type Policy string

const (
	PolicyFailFast       Policy = "fail-fast"
	PolicyLogAndContinue Policy = "log-and-continue"
)

func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicyFailFast, nil
	case PolicyFailFast, PolicyLogAndContinue:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// Check step names used in logs, metrics and CheckError.
const (
	StepConnections = "connections"
	StepLogger      = "logger"
	StepStructure   = "structure"
)

// CheckError wraps the failure of one monitor step.
type CheckError struct {
	Step string
	Err  error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("supervise: %s check failed: %v", e.Step, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterruptedWait, context.Cause(ctx))
}
