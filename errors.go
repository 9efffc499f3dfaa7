package fraudflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeExecutionFailed  = "EXECUTION_FAILED"
	ErrCodeTransitionLimit  = "TRANSITION_LIMIT"
	ErrCodeInvalidRoute     = "INVALID_ROUTE"
	ErrCodePanic            = "PANIC"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// WorkflowError represents an error that aborts a run
type WorkflowError struct {
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	Node      NodeID                 `json:"node,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	msg := e.Message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Node != "" {
		return fmt.Sprintf("[%s] %s (node: %s)", e.Code, msg, e.Node)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap exposes the underlying cause
func (e *WorkflowError) Unwrap() error {
	return e.cause
}

// NewWorkflowError creates a new workflow error
func NewWorkflowError(code, message string) *WorkflowError {
	return &WorkflowError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewWorkflowErrorWithNode creates a new workflow error with node context
func NewWorkflowErrorWithNode(code, message string, node NodeID) *WorkflowError {
	return &WorkflowError{
		Message:   message,
		Code:      code,
		Node:      node,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to the error
func (e *WorkflowError) WithDetails(details map[string]interface{}) *WorkflowError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error
func (e *WorkflowError) WithCause(err error) *WorkflowError {
	e.cause = err
	return e
}

// IsCode reports whether err is, or wraps, a WorkflowError with the given code
func IsCode(err error, code string) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}

// ToWorkflowError converts any error into a WorkflowError attributed to node
func ToWorkflowError(err error, node NodeID) *WorkflowError {
	if err == nil {
		return nil
	}

	var we *WorkflowError
	if errors.As(err, &we) {
		if we.Node == "" {
			we.Node = node
		}
		return we
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewWorkflowErrorWithNode(ErrCodeCancelled, "run cancelled", node).WithCause(err)
	}

	return NewWorkflowErrorWithNode(ErrCodeInternalError, "node failed", node).WithCause(err)
}
