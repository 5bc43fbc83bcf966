// internal/cli/output.go
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for ledgerctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // audit found inconsistencies, settlements reverted
	ExitCommandError = 2 // bad flags, configuration or database errors
)

type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that carry no code.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// render writes data as indented JSON, or hands it to text for the text
// format.
func render(w io.Writer, format string, data interface{}, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(w)
	return nil
}
