package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/idset"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (inventory exhausted, conflicts exhausted, overlap, ...)
	ExitCommandError = 2 // Command error (bad arguments, bad config, unreachable store)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// opError classifies an allocator error: caller mistakes are command errors,
// everything else is an operation failure.
func opError(message string, err error) *ExitError {
	switch {
	case errors.Is(err, idgen.ErrInvalid), errors.Is(err, idgen.ErrParse):
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string `json:"status"`         // "ok" or "error"
	Data   any    `json:"data,omitempty"` // success payload
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// SetResult is the printable form of an id set.
type SetResult struct {
	Category string   `json:"category"`
	Ranges   []string `json:"ranges"`
	Size     int64    `json:"size"`
}

func newSetResult(s *idset.Set) SetResult {
	rs := s.PeekRanges()
	out := SetResult{Category: s.Category().Name(), Ranges: make([]string, len(rs)), Size: s.Size()}
	for i, r := range rs {
		out.Ranges[i] = r.String()
	}
	return out
}

// String prints the compact range list accepted by push and init.
func (r SetResult) String() string { return strings.Join(r.Ranges, ",") }

// Message is a plain confirmation.
type Message struct {
	Message string `json:"message"`
}

func (m Message) String() string { return m.Message }
