package domain

import (
	"errors"
	"fmt"
)

// Status is the coarse result class of a manager operation.
//
// Every DomainError maps onto exactly one Status; callers that only care
// about the class of failure (or need a stable numeric code for firmware
// interop) switch on Status instead of matching individual errors.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidParameter
	StatusNotInitialized
	StatusAlreadyInitialized
	StatusNotFound
	StatusKeyTooLong
	StatusBufferTooSmall
	StatusTypeMismatch
	StatusNoEncryptionKey
	StatusInvalidFormat
	StatusCapacityExceeded
	StatusDecryptFailed
	StatusBackendError
)

var statusText = map[Status]string{
	StatusOK:                 "ok",
	StatusInvalidParameter:   "invalid parameter",
	StatusNotInitialized:     "not initialized",
	StatusAlreadyInitialized: "already initialized",
	StatusNotFound:           "not found",
	StatusKeyTooLong:         "key too long",
	StatusBufferTooSmall:     "buffer too small",
	StatusTypeMismatch:       "type mismatch",
	StatusNoEncryptionKey:    "no encryption key",
	StatusInvalidFormat:      "invalid format",
	StatusCapacityExceeded:   "capacity exceeded",
	StatusDecryptFailed:      "decryption failed",
	StatusBackendError:       "backend error",
}

// String returns the diagnostic text for the status.
func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// DomainError represents a domain error with a structured error code.
type DomainError struct {
	Status  Status // Result class
	Code    string // Error code (e.g., "CM-KEY-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given status, code and message.
func NewDomainError(status Status, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Status:  e.Status,
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Status:  e.Status,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// StatusOf maps an error to its Status.
//
// nil maps to StatusOK. Errors that are not DomainErrors come from
// collaborators (backends, the OS) and map to StatusBackendError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Status
	}
	return StatusBackendError
}

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidParameter indicates a nil, empty or out-of-range argument.
	ErrInvalidParameter = NewDomainError(StatusInvalidParameter, "CM-ARG-4000", "invalid parameter")

	// ErrKeyTooLong indicates a key that is empty or longer than the configured limit.
	ErrKeyTooLong = NewDomainError(StatusKeyTooLong, "CM-ARG-4001", "key too long")

	// ErrBufferTooSmall indicates the caller buffer cannot hold the result.
	ErrBufferTooSmall = NewDomainError(StatusBufferTooSmall, "CM-ARG-4002", "buffer too small")
)

// ============================================================================
// Lifecycle Errors (LIFE)
// ============================================================================

var (
	// ErrNotInitialized indicates an operation on a manager that was not initialized.
	ErrNotInitialized = NewDomainError(StatusNotInitialized, "CM-LIFE-4090", "not initialized")

	// ErrAlreadyInitialized indicates a second Init without Deinit.
	ErrAlreadyInitialized = NewDomainError(StatusAlreadyInitialized, "CM-LIFE-4091", "already initialized")
)

// ============================================================================
// Entry Errors (KEY)
// ============================================================================

var (
	// ErrNotFound indicates the key, namespace or default does not exist.
	ErrNotFound = NewDomainError(StatusNotFound, "CM-KEY-4040", "not found")

	// ErrTypeMismatch indicates the stored value has a different type than requested.
	ErrTypeMismatch = NewDomainError(StatusTypeMismatch, "CM-KEY-4001", "type mismatch")

	// ErrCapacityExceeded indicates a fixed budget (keys, namespaces, callbacks) is exhausted.
	ErrCapacityExceeded = NewDomainError(StatusCapacityExceeded, "CM-KEY-5070", "capacity exceeded")
)

// ============================================================================
// Crypto Errors (CRYP)
// ============================================================================

var (
	// ErrNoEncryptionKey indicates an encrypted operation without an active key.
	ErrNoEncryptionKey = NewDomainError(StatusNoEncryptionKey, "CM-CRYP-4010", "no encryption key")

	// ErrDecryptFailed indicates ciphertext that does not open under the active key.
	ErrDecryptFailed = NewDomainError(StatusDecryptFailed, "CM-CRYP-4011", "decryption failed")
)

// ============================================================================
// Codec and Backend Errors (SYS)
// ============================================================================

var (
	// ErrInvalidFormat indicates malformed JSON or binary import data.
	ErrInvalidFormat = NewDomainError(StatusInvalidFormat, "CM-SYS-4000", "invalid format")

	// ErrBackend indicates a failure reported by the persistence backend.
	ErrBackend = NewDomainError(StatusBackendError, "CM-SYS-5001", "backend error")
)
