package core

// rejection.go defines the expected, user-correctable outcomes of an upload.
//
// A Rejection is not a system error: it is reported verbatim to the caller and
// never retried. Storage and transport failures are returned as ordinary
// wrapped errors instead.

import (
	"errors"
	"fmt"
	"strings"
)

// RejectionReason names why an uploaded file was refused.
type RejectionReason string

const (
	NoFileProvided      RejectionReason = "no_file_provided"
	InvalidFileType     RejectionReason = "invalid_file_type"
	EmptyFile           RejectionReason = "empty_file"
	MalformedContent    RejectionReason = "malformed_content"
	InconsistentColumns RejectionReason = "inconsistent_columns"
	DuplicateFile       RejectionReason = "duplicate_file"
)

// Sentinel errors for lookups and authorization.
var (
	// ErrNotFound is returned for missing records and for records the
	// principal may not see. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("upload not found")

	// ErrForbidden is returned when a non-admin asks for an admin-only listing.
	ErrForbidden = errors.New("forbidden")

	// ErrUniquenessViolation is returned by repositories when the content hash
	// unique constraint rejects an insert.
	ErrUniquenessViolation = errors.New("content hash already exists")

	// ErrBlobNotFound is returned by blob stores when a key has no object.
	ErrBlobNotFound = errors.New("blob not found")
)

// Rejection is an input rejection with an optional detail message.
type Rejection struct {
	Reason RejectionReason
	Detail string // Parser message for MalformedContent, row info for InconsistentColumns
}

func (r *Rejection) Error() string {
	msg := r.Reason.Message()
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s", strings.TrimSuffix(msg, "."), r.Detail)
	}
	return msg
}

// Message returns the user-facing text for the reason.
func (r RejectionReason) Message() string {
	switch r {
	case NoFileProvided:
		return "Please select a file to upload."
	case InvalidFileType:
		return "Invalid file type. Please upload a .csv file."
	case EmptyFile:
		return "File is empty."
	case MalformedContent:
		return "Error parsing CSV"
	case InconsistentColumns:
		return "All rows must have the same number of columns."
	case DuplicateFile:
		return "This file has already been uploaded."
	default:
		return string(r)
	}
}

func reject(reason RejectionReason) *Rejection {
	return &Rejection{Reason: reason}
}

func rejectf(reason RejectionReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a Rejection from err's chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsRejection reports whether err is a Rejection with the given reason.
func IsRejection(err error, reason RejectionReason) bool {
	r, ok := AsRejection(err)
	return ok && r.Reason == reason
}
