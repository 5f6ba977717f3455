package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"fleetreport/internal"
)

var (
	ErrHeaderNotFound  = errors.New("expected headers not found")
	ErrNothingToExport = errors.New("no data to export")
)

// ParseError means the bytes of an export could not be tokenized. The load
// is aborted and nothing is published.
type ParseError struct {
	Kind internal.InputKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// HeaderNotFoundError is returned when no header row could be located in a
// grid, or when none of the core columns of a report resolve.
type HeaderNotFoundError struct {
	Expected []string
	Seen     []string
}

func (e *HeaderNotFoundError) Error() string {
	msg := "expected headers not found (" + strings.Join(e.Expected, ", ") + "); check the file"
	if len(e.Seen) > 0 {
		msg += "; headers present: " + strings.Join(e.Seen, ", ")
	}
	return msg
}

func (e *HeaderNotFoundError) Is(target error) bool { return target == ErrHeaderNotFound }

type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("export: %v", e.Err)
	}
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
