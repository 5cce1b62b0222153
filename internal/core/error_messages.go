package core

// error_messages.go maps failures to user-facing messages with a support code.
//
// Typed pipeline errors are classified first:
//
//	CFG001 - Store configuration error (missing URL or credentials)
//	VAL001 - No test_forms data provided
//	VAL002 - Document could not be decoded
//	REF001 - A row references a parent that was not written
//	SUB001 - Another submission is in progress
//	SUB002 - Submission stopped by deadline or cancellation
//
// Store failures are then matched against the pattern table below
// (case-insensitive strings.Contains, first match wins):
//
//	DB001 - Duplicate key           "duplicate key"
//	DB002 - Unique constraint       "unique constraint", "violates unique"
//	DB003 - Foreign key             "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused      "connection refused"
//	DB005 - Connection reset        "connection reset"
//	DB006 - Timeout                 "timeout"
//	DB007 - Busy or deadlock        "deadlock", "database is locked", "serialization"
//	RATE001 - Rate limited          "rate limit", "too many requests"
//
// A store failure that matches nothing is DB000. Anything else is ERR000.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgConfig = UserMessage{
		Message: "The data store is not configured",
		Action:  "Set the store URL and API key, then resubmit",
		Code:    "CFG001",
	}
	msgMissingRoot = UserMessage{
		Message: "No test_forms data provided",
		Action:  "Include exactly one entry in test_forms",
		Code:    "VAL001",
	}
	msgInvalidDocument = UserMessage{
		Message: "The test set could not be read",
		Action:  "Check that the body is a JSON object with the test set collections",
		Code:    "VAL002",
	}
	msgUnresolved = UserMessage{
		Message: "A row references a parent that does not exist in this submission",
		Action:  "Check labels and keys, or supply explicit parent ids",
		Code:    "REF001",
	}
	msgBusy = UserMessage{
		Message: "Another test set is being saved",
		Action:  "Please wait a moment and try again",
		Code:    "SUB001",
	}
	msgCancelled = UserMessage{
		Message: "The submission was stopped before it finished",
		Action:  "Resubmit; rows already saved will be updated in place",
		Code:    "SUB002",
	}
	msgRemoteDefault = UserMessage{
		Message: "The data store rejected a row",
		Action:  "Check the logs for the store error and resubmit",
		Code:    "DB000",
	}
)

// errorPatterns is ordered: specific patterns before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Remove the explicit id or use the existing row's id",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate labels or numbers in the test set",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Check for duplicate labels or numbers in the test set",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Check the explicit parent ids in the test set",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Check the explicit parent ids in the test set",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the data store",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The data store connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "The data store was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "The data store was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "serialization",
		msg: UserMessage{
			Message: "The data store was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "too many requests",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. It returns the zero
// UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		cfgErr    *ConfigurationError
		valErr    *ValidationError
		refErr    *UnresolvedReferenceError
		cancelErr *CancelledError
		remoteErr *RemoteWriteError
	)
	switch {
	case errors.Is(err, ErrTooManySubmissions):
		return msgBusy
	case errors.As(err, &cfgErr):
		return msgConfig
	case errors.As(err, &valErr):
		if errors.Is(err, ErrMissingRoot) {
			return msgMissingRoot
		}
		return msgInvalidDocument
	case errors.As(err, &refErr):
		return msgUnresolved
	case errors.As(err, &cancelErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return msgCancelled
	case errors.As(err, &remoteErr):
		if msg, ok := matchPattern(remoteErr.Err); ok {
			return msg
		}
		return msgRemoteDefault
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: XXX). Action", or "" for nil.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
