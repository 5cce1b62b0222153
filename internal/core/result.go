package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the terminal status of a submission.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the terminal report of a submission.
//
// Err is nil exactly when Status is StatusSuccess. On failure RowsUpserted is
// the number of rows committed before the abort; they are not rolled back.
type Result struct {
	Status       Status
	Message      string
	RowsUpserted int
	SubmissionID string
	Err          error
}

// Succeeded reports whether every row was committed.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess && r.Err == nil
}

func succeeded(rows int) Result {
	return Result{
		Status:       StatusSuccess,
		Message:      fmt.Sprintf("Successfully upserted %d rows of test data", rows),
		RowsUpserted: rows,
	}
}

// Rejected returns the result for a submission that failed before any row
// was written, such as an unreadable document.
func Rejected(err error) Result {
	return failed(err, 0)
}

func failed(err error, rows int) Result {
	return Result{
		Status:       StatusError,
		Message:      failureMessage(err),
		RowsUpserted: rows,
		Err:          err,
	}
}

func failureMessage(err error) string {
	var cfgErr *ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("Store configuration error: %v", cfgErr.Err)
	case errors.Is(err, ErrMissingRoot):
		return "No test_forms data provided"
	default:
		return fmt.Sprintf("Error upserting test data: %v", err)
	}
}

// resultJSON is the wire form of a Result.
type resultJSON struct {
	Status       Status `json:"status"`
	Message      string `json:"message"`
	RowsUpserted int    `json:"rows_upserted"`
	SubmissionID string `json:"submission_id,omitempty"`
	Code         string `json:"code,omitempty"`
}

// MarshalJSON encodes the result as
// {"status", "message", "rows_upserted", "submission_id", "code"}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Status:       r.Status,
		Message:      r.Message,
		RowsUpserted: r.RowsUpserted,
		SubmissionID: r.SubmissionID,
	}
	if r.Err != nil {
		out.Code = MapError(r.Err).Code
	}
	return json.Marshal(out)
}
