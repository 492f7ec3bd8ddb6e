// Package core provides the facility reconciliation and availability engine.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// API clients receive the code alongside the message so operators can find the
// matching log entry quickly.
//
// Error codes are grouped by category:
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Missing column: A dataset lacks a required column
//	         Action: Check that the published CSV still carries NO, 名称, 緯度 and 経度
//	         Patterns: "missing required column", "column not found"
//
// # Source Errors (SRC001-SRC099)
//
// Errors raised while loading raw text from a configured location:
//
//	SRC001 - Fetch failed: The data source could not be downloaded
//	         Action: Check the source URL and network connectivity
//	         Patterns: "fetch failed"
//
//	SRC002 - Decode failed: The data source is not in the configured encoding
//	         Action: Check AVAILABILITY_ENCODING and BASE_SOURCE_ENCODING
//	         Patterns: "decode failed", "unsupported encoding"
//
//	SRC003 - Unsupported scheme: The source location scheme is not supported
//	         Action: Use an http(s)://, file:// or s3:// location
//	         Patterns: "unsupported scheme"
//
//	SRC004 - Source not found: The data source does not exist
//	         Action: Verify the configured location
//	         Patterns: "source not found"
//
//	SRC005 - Fetcher busy: Too many source downloads in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many fetches"
//
// # Refresh Errors (REF001-REF099)
//
//	REF001 - Refresh in progress: Another refresh is already running
//	         Action: Wait for the running refresh to finish
//	         Patterns: "refresh already in progress"
//
//	REF002 - No data: No facility data has been loaded yet
//	         Action: Trigger a refresh or wait for the first load to finish
//	         Patterns: "no snapshot available"
//
// # Query Errors (FAC001, QRY001-QRY099)
//
//	FAC001 - Facility not found: No facility has this number
//	         Action: Verify the facility number
//	         Patterns: "facility not found"
//
//	QRY001 - Invalid age: The age filter is not a non-negative integer
//	         Action: Pass age as a whole number such as 0 or 3
//	         Patterns: "invalid age"
//
//	QRY002 - Unknown weekday: The weekday filter is not configured
//	         Action: Use one of the weekdays listed by /api/filters
//	         Patterns: "unknown weekday"
//
//	QRY003 - Unknown type: The facility type filter is not recognised
//	         Action: Use one of the type keys listed by /api/filters
//	         Patterns: "unknown type key"
//
// # Request Errors (UPL004-UPL005)
//
//	UPL004 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	UPL005 - Request timeout: Request timed out
//	         Action: Please try again later
//	         Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the service layer.
var (
	ErrRefreshInProgress = errors.New("refresh already in progress")
	ErrNoSnapshot        = errors.New("no snapshot available")
	ErrFacilityNotFound  = errors.New("facility not found")
	ErrInvalidAge        = errors.New("invalid age")
	ErrUnknownWeekday    = errors.New("unknown weekday")
	ErrUnknownTypeKey    = errors.New("unknown type key")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Column Errors (COL001)
	// =========================================================================
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "A data source is missing a required column",
			Action:  "Check that the published CSV still carries NO, 名称, 緯度 and 経度",
			Code:    "COL001",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "A data source is missing a required column",
			Action:  "Check that the published CSV still carries NO, 名称, 緯度 and 経度",
			Code:    "COL001",
		},
	},

	// =========================================================================
	// Source Errors (SRC001-SRC005)
	// =========================================================================
	{
		pattern: "fetch failed",
		msg: UserMessage{
			Message: "The data source could not be downloaded",
			Action:  "Check the source URL and network connectivity",
			Code:    "SRC001",
		},
	},
	{
		pattern: "decode failed",
		msg: UserMessage{
			Message: "The data source is not in the configured encoding",
			Action:  "Check AVAILABILITY_ENCODING and BASE_SOURCE_ENCODING",
			Code:    "SRC002",
		},
	},
	{
		pattern: "unsupported encoding",
		msg: UserMessage{
			Message: "The configured source encoding is not supported",
			Action:  "Use shift-jis, euc-jp or utf-8",
			Code:    "SRC002",
		},
	},
	{
		pattern: "unsupported scheme",
		msg: UserMessage{
			Message: "The source location scheme is not supported",
			Action:  "Use an http(s)://, file:// or s3:// location",
			Code:    "SRC003",
		},
	},
	{
		pattern: "source not found",
		msg: UserMessage{
			Message: "The data source does not exist",
			Action:  "Verify the configured location",
			Code:    "SRC004",
		},
	},
	{
		pattern: "too many fetches",
		msg: UserMessage{
			Message: "Too many source downloads in progress",
			Action:  "Please wait a moment and try again",
			Code:    "SRC005",
		},
	},

	// =========================================================================
	// Refresh Errors (REF001-REF002)
	// =========================================================================
	{
		pattern: "refresh already in progress",
		msg: UserMessage{
			Message: "Another refresh is already running",
			Action:  "Wait for the running refresh to finish",
			Code:    "REF001",
		},
	},
	{
		pattern: "no snapshot available",
		msg: UserMessage{
			Message: "No facility data has been loaded yet",
			Action:  "Trigger a refresh or wait for the first load to finish",
			Code:    "REF002",
		},
	},

	// =========================================================================
	// Query Errors (FAC001, QRY001-QRY003)
	// =========================================================================
	{
		pattern: "facility not found",
		msg: UserMessage{
			Message: "Facility not found",
			Action:  "Verify the facility number",
			Code:    "FAC001",
		},
	},
	{
		pattern: "invalid age",
		msg: UserMessage{
			Message: "The age filter must be a whole number",
			Action:  "Pass age as a whole number such as 0 or 3",
			Code:    "QRY001",
		},
	},
	{
		pattern: "unknown weekday",
		msg: UserMessage{
			Message: "The weekday filter is not recognised",
			Action:  "Use one of the weekdays listed by /api/filters",
			Code:    "QRY002",
		},
	},
	{
		pattern: "unknown type key",
		msg: UserMessage{
			Message: "The facility type filter is not recognised",
			Action:  "Use one of the type keys listed by /api/filters",
			Code:    "QRY003",
		},
	},

	// =========================================================================
	// Request Errors (UPL004-UPL005)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
