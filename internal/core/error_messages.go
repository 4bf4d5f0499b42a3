package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// Rejections carry their own reason and map one-to-one onto a code. Any
// other error is matched case-insensitively against known technical
// patterns; the first match wins. Unmatched errors fall back to ERR000 and
// the technical error is only ever logged server-side.
//
//	FILE002 - Malformed CSV         FILE004 - No file provided
//	FILE005 - Empty file            FILE006 - Invalid file type
//	FILE007 - Inconsistent columns  FILE008 - Duplicate file
//	FILE001 - File too large
//	UPL002  - Too many uploads      UPL003  - Upload not found
//	UPL004  - Request cancelled     UPL005  - Request timed out
//	AUTH001 - Not signed in         AUTH002 - Forbidden
//	DB004   - Connection refused    DB005   - Connection reset
//	DB007   - Deadlock
//	ERR000  - Unknown error

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var rejectionMessages = map[RejectionReason]UserMessage{
	NoFileProvided: {
		Message: NoFileProvided.Message(),
		Action:  "Choose a CSV file before submitting",
		Code:    "FILE004",
	},
	InvalidFileType: {
		Message: InvalidFileType.Message(),
		Action:  "Only text/csv files ending in .csv are accepted",
		Code:    "FILE006",
	},
	EmptyFile: {
		Message: EmptyFile.Message(),
		Action:  "Upload a CSV file with at least one row",
		Code:    "FILE005",
	},
	MalformedContent: {
		Message: MalformedContent.Message(),
		Action:  "Check the file for unbalanced quotes and save it as UTF-8",
		Code:    "FILE002",
	},
	InconsistentColumns: {
		Message: InconsistentColumns.Message(),
		Action:  "Make sure every row has as many fields as the first row",
		Code:    "FILE007",
	},
	DuplicateFile: {
		Message: DuplicateFile.Message(),
		Action:  "This exact content is already stored",
		Code:    "FILE008",
	},
}

// errorPattern maps a lowercase substring of a technical error to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered specific before general.
var errorPatterns = []errorPattern{
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE001"}},
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE001"}},
	{"too many uploads", UserMessage{"System is busy processing other uploads", "Please wait a moment and try again", "UPL002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
}

var (
	notFoundMessage        = UserMessage{"Upload not found", "Check the link or return to your dashboard", "UPL003"}
	forbiddenMessage       = UserMessage{"You are not authorized to perform this action.", "Ask an administrator for access", "AUTH002"}
	unauthenticatedMessage = UserMessage{"Please sign in to continue", "Sign in with your Google account", "AUTH001"}
	canceledMessage        = UserMessage{"Request was cancelled", "Please try again", "UPL004"}
	timeoutMessage         = UserMessage{"Request timed out", "Try a smaller file or check your connection", "UPL005"}
)

// defaultMessage is the ERR000 fallback.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if r, ok := AsRejection(err); ok {
		msg, known := rejectionMessages[r.Reason]
		if !known {
			return defaultMessage
		}
		if r.Detail != "" {
			msg.Message = r.Error()
		}
		return msg
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return notFoundMessage
	case errors.Is(err, ErrForbidden):
		return forbiddenMessage
	case errors.Is(err, ErrUnauthenticated):
		return unauthenticatedMessage
	case errors.Is(err, context.Canceled):
		return canceledMessage
	case errors.Is(err, context.DeadlineExceeded):
		return timeoutMessage
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
