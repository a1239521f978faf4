package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownHandler is matched by every UnknownHandlerError.
var ErrUnknownHandler = errors.New("unknown handler")

// ConfigurationError reports an invalid registry or service setup. It is
// fatal at startup.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownHandlerError is returned when dispatch requests a name that is not
// registered.
type UnknownHandlerError struct {
	Name string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("unknown handler %q", e.Name)
}

// Is makes errors.Is(err, ErrUnknownHandler) succeed.
func (e *UnknownHandlerError) Is(target error) bool { return target == ErrUnknownHandler }

// ModelOutputParseError describes model output that could not be turned into
// structured data. It never escapes the parsing boundary; it is logged and
// replaced by a fallback.
type ModelOutputParseError struct {
	Raw string
	Err error
}

func (e *ModelOutputParseError) Error() string {
	return fmt.Sprintf("unparseable model output: %v", e.Err)
}

func (e *ModelOutputParseError) Unwrap() error { return e.Err }

// HandlerExecutionError wraps any failure raised by a dispatched handler.
type HandlerExecutionError struct {
	Handler string
	TaskID  string
	Err     error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler %s failed on task %s: %v", e.Handler, e.TaskID, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }

// TrackerError wraps a structured error payload returned by the tracker.
type TrackerError struct {
	Op       string
	Messages []string
	Codes    []string
}

func (e *TrackerError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if len(e.Codes) > 0 {
		msg += " [" + strings.Join(e.Codes, ",") + "]"
	}
	if e.Op == "" {
		return "tracker error: " + msg
	}
	return fmt.Sprintf("tracker error during %s: %s", e.Op, msg)
}
