package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so errors.Is works across clones.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic kinds.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Task and assignment lifecycle.
var (
	ErrTaskNotFound         = New("TASK_NOT_FOUND", http.StatusNotFound, "task not found")
	ErrAssignmentNotFound   = New("ASSIGNMENT_NOT_FOUND", http.StatusNotFound, "assignment not found")
	ErrNotAccepted          = New("NOT_ACCEPTED", http.StatusNotFound, "task has not been accepted by student")
	ErrAlreadyAccepted      = New("ALREADY_ACCEPTED", http.StatusConflict, "student has already accepted this task")
	ErrAlreadyCompleted     = New("ALREADY_COMPLETED", http.StatusConflict, "student has already completed this task")
	ErrAlreadySubmitted     = New("ALREADY_SUBMITTED", http.StatusConflict, "proof already submitted for this task")
	ErrNotRejected          = New("NOT_REJECTED", http.StatusConflict, "assignment is not rejected")
	ErrNotSubmitted         = New("NOT_SUBMITTED", http.StatusConflict, "assignment has no pending submission")
	ErrResubmissionRequired = New("RESUBMISSION_REQUIRED", http.StatusConflict, "assignment was rejected, resubmit the proof instead")
	ErrProofRequired        = New("PROOF_REQUIRED", http.StatusBadRequest, "proof file is required")
	ErrReasonRequired       = New("REASON_REQUIRED", http.StatusBadRequest, "reason is required")
	ErrNoSlotsAvailable     = New("NO_SLOTS_AVAILABLE", http.StatusConflict, "no slots available")
	ErrOperationInProgress  = New("OPERATION_IN_PROGRESS", http.StatusConflict, "another request for this record is in progress")
)

// Rewards, policy and payments.
var (
	ErrRewardNotFound       = New("REWARD_NOT_FOUND", http.StatusNotFound, "reward not found")
	ErrAlreadyClaimed       = New("ALREADY_CLAIMED", http.StatusConflict, "student has already claimed this reward")
	ErrPolicyUnavailable    = New("POLICY_UNAVAILABLE", http.StatusServiceUnavailable, "reward policy is not initialized")
	ErrPaymentFailed        = New("PAYMENT_FAILED", http.StatusBadGateway, "payment transfer failed")
	ErrPaymentStatusUnknown = New("PAYMENT_STATUS_UNKNOWN", http.StatusGatewayTimeout, "payment outcome unknown, pending reconciliation")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an unexpected failure with a caller-facing message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
