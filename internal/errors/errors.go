package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - malformed command, unknown surface, bad filters
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - command, surface, or schedule not found
	ErrNotFound = errors.New("not found")

	// ErrConflict - state conflict (transition attempted on a non-pending or terminal command)
	ErrConflict = errors.New("conflict")

	// ErrPermissionDenied - caller is not allowed to perform the operation
	ErrPermissionDenied = errors.New("permission denied")

	// ErrApprovalRequired - command is parked pending a human decision
	ErrApprovalRequired = errors.New("approval required")

	// ErrStorage - underlying store unavailable; the write was not performed
	ErrStorage = errors.New("storage unavailable")

	// ErrTransient - transient error, caller may retry
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
