package table

// # Error Codes Reference
//
// Loader and writer failures carry a code so an operator reviewing a run can
// look them up quickly:
//
//	FMT001 - Malformed delimited input (missing header, field count mismatch)
//	         Action: Check the delimiter and quoting of the source file
//
//	SCH001 - Destructive schema change refused (rename onto a populated column,
//	         strict removal of an unknown column)
//	         Action: Remove or rename the destination column first
//
//	JOIN001 - Ambiguous join key in strict mode
//	          Action: De-duplicate the lookup table on its key column
//
//	IO001 - Source or destination file cannot be read or written
//	        Action: Check the path exists and is writable
//
//	ERR000 - Unknown error

import (
	"errors"
	"fmt"
)

// FormatError reports malformed delimited input. Line is 1-based, 0 when the
// problem is not tied to a line.
type FormatError struct {
	Source string
	Line   int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "invalid csv"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// SchemaError reports a column operation refused to avoid data loss.
type SchemaError struct {
	Op     string
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s column %q: %s (row %d)", e.Op, e.Column, e.Reason, e.Row)
	}
	return fmt.Sprintf("%s column %q: %s", e.Op, e.Column, e.Reason)
}

// AmbiguousKeyError is returned by a strict Join when the right table holds
// the same key more than once.
type AmbiguousKeyError struct {
	Column string
	Key    string
	Count  int
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("join key %q appears %d times in column %q", e.Key, e.Count, e.Column)
}

// IOError wraps a file system failure on a source or destination path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// UserMessage provides operator-facing error information.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// String formats the message as "[CODE] Message. Action".
func (m UserMessage) String() string {
	return fmt.Sprintf("[%s] %s. %s", m.Code, m.Message, m.Action)
}

// MapError converts an error returned by this package into a UserMessage.
func MapError(err error) UserMessage {
	var (
		fe *FormatError
		se *SchemaError
		ae *AmbiguousKeyError
		ie *IOError
	)
	switch {
	case errors.As(err, &fe):
		return UserMessage{Message: "Malformed delimited input", Action: "Check the delimiter and quoting of the source file", Code: "FMT001"}
	case errors.As(err, &se):
		return UserMessage{Message: "Destructive schema change refused", Action: "Remove or rename the destination column first", Code: "SCH001"}
	case errors.As(err, &ae):
		return UserMessage{Message: "Ambiguous join key", Action: "De-duplicate the lookup table on its key column", Code: "JOIN001"}
	case errors.As(err, &ie):
		return UserMessage{Message: "File cannot be read or written", Action: "Check the path exists and is writable", Code: "IO001"}
	default:
		return UserMessage{Message: "An unexpected error occurred", Action: "Check the logs for details", Code: "ERR000"}
	}
}
