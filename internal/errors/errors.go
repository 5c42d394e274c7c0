// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrMandateNotFound   = errors.New("mandate not found")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrBrokerNotFound    = errors.New("unknown broker")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTimeout           = errors.New("operation timed out")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrAuditLogMissing   = errors.New("audit log not found")
)

// ValidationError represents a malformed mandate or configuration value.
// It is fatal at load time: a session does not start with an invalid mandate.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// BrokerError represents an execution failure from a broker adapter.
// It never retracts an allow decision already recorded in the audit log.
type BrokerError struct {
	Broker  string
	Op      string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s] %s: %s: %v", e.Broker, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s] %s: %s", e.Broker, e.Op, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(broker, op, message string, err error) *BrokerError {
	return &BrokerError{
		Broker:  broker,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// StorageError represents an audit persistence failure. The triggering
// action is treated as not yet decided: it must not be forwarded to the
// broker, and the caller may retry.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [%s] %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// ChainIntegrityError indicates the audit log hash chain is broken. It is
// raised only by verification, never by append, and is never auto-repaired.
type ChainIntegrityError struct {
	Index   int
	EventID string
	Message string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity error at entry %d (%s): %s", e.Index, e.EventID, e.Message)
}

// NewChainIntegrityError creates a new ChainIntegrityError.
func NewChainIntegrityError(index int, eventID, message string) *ChainIntegrityError {
	return &ChainIntegrityError{
		Index:   index,
		EventID: eventID,
		Message: message,
	}
}

// SignatureError represents a mandate signature verification failure.
type SignatureError struct {
	MandateID string
	Reason    string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error [%s]: %s", e.MandateID, e.Reason)
}

// NewSignatureError creates a new SignatureError.
func NewSignatureError(mandateID, reason string) *SignatureError {
	return &SignatureError{
		MandateID: mandateID,
		Reason:    reason,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
