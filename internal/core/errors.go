package core

import (
	"errors"
	"fmt"
)

// ErrMissingRoot is returned when a document has no test form. Without the
// root row there is no id to attach sections to.
var ErrMissingRoot = errors.New("no test_forms data provided")

// ConfigurationError reports that no store client could be constructed.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("store configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports a document that cannot be processed at all.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid test set: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnresolvedReferenceError reports a row whose parent could not be resolved
// when the row was about to be written.
type UnresolvedReferenceError struct {
	Kind   Kind       // kind of the failing row
	Row    int        // zero-based index of the failing row within its stage
	Parent Kind       // kind of the missing parent
	Key    NaturalKey // nil when the row named no parent at all
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("%s row %d: missing %s reference", e.Kind, e.Row, e.Parent)
	}
	return fmt.Sprintf("%s row %d: unresolved %s", e.Kind, e.Row, e.Key)
}

// RemoteWriteError reports a row the store rejected, after retries were
// exhausted or immediately for non-transient causes.
type RemoteWriteError struct {
	Kind     Kind
	Row      int
	Attempts int
	Err      error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("failed to upsert %s row %d after %d attempt(s): %v", e.Kind, e.Row, e.Attempts, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// CancelledError reports that the caller's context ended before a row could
// be written.
type CancelledError struct {
	Kind Kind
	Row  int
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("stopped before %s row %d: %v", e.Kind, e.Row, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
