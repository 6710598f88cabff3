// Package perr defines the error taxonomy used across pflow (SPEC_FULL §1.2,
// spec §7): authoring errors, runtime template errors, API validation
// errors, non-repairable API errors, and execution failures, all carried as
// a single DomainError type so callers can switch on Code.
package perr

import "fmt"

// Code classifies a DomainError per the spec §7 taxonomy.
type Code string

const (
	CodeSchema           Code = "schema_error"
	CodeCycle            Code = "cycle_error"
	CodeTemplateAuthor   Code = "template_authoring_error"
	CodeUnknownNodeType  Code = "unknown_node_type"
	CodeDuplicateID      Code = "duplicate_id"
	CodeInvalidName      Code = "invalid_name"
	CodeTemplateRuntime  Code = "template_error"
	CodeAPIValidation    Code = "api_validation"
	CodeNonRepairableAPI Code = "non_repairable_api_error"
	CodeExecutionFailure Code = "execution_failure"
	CodeRepairExhausted  Code = "repair_exhausted"
	CodeCancelled        Code = "cancelled"
)

// DomainError is the one error type pflow returns across its public
// surface, modeled on the teacher's ExecutionError (WorkflowID/NodeID/
// Cause triple generalized into Code/Message/Err plus an optional NodeID).
type DomainError struct {
	Code    Code
	NodeID  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// New constructs a DomainError with no node context.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap constructs a DomainError carrying an underlying cause.
func Wrap(code Code, message string, cause error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: cause}
}

// WrapNode constructs a node-scoped DomainError.
func WrapNode(code Code, nodeID, message string, cause error) *DomainError {
	return &DomainError{Code: code, NodeID: nodeID, Message: message, Err: cause}
}

// Fixable reports whether the orchestrator may feed this error to repair
// (spec §7: api_validation is fixable, non-repairable errors are not).
func (e *DomainError) Fixable() bool {
	switch e.Code {
	case CodeNonRepairableAPI:
		return false
	default:
		return true
	}
}

// CodeOf extracts the Code from err if it is (or wraps) a *DomainError.
func CodeOf(err error) (Code, bool) {
	var de *DomainError
	if As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// As walks err's Unwrap chain and stores the first *DomainError it finds in
// target, so callers only import this package for the common case.
func As(err error, target **DomainError) bool {
	for err != nil {
		if de, ok := err.(*DomainError); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
