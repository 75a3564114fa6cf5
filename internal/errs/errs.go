// Package errs defines the structured error taxonomy shared by the service
// layer and transports. Every error carries a machine-readable code, a
// recovery hint for the caller, and a retryable flag so clients can
// distinguish "fix your request" from "try again later".
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stratdeck/stratdeck/internal/diag"
)

// Code identifies an error class.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeArchetypeNotFound Code = "ARCHETYPE_NOT_FOUND"
	CodeCardNotFound      Code = "CARD_NOT_FOUND"
	CodeStrategyNotFound  Code = "STRATEGY_NOT_FOUND"

	CodeValidation          Code = "VALIDATION_ERROR"
	CodeSchemaValidation    Code = "SCHEMA_VALIDATION_ERROR"
	CodeInvalidRole         Code = "INVALID_ROLE"
	CodeInvalidStatus       Code = "INVALID_STATUS"
	CodeDuplicateAttachment Code = "DUPLICATE_ATTACHMENT"
	CodeAttachmentNotFound  Code = "ATTACHMENT_NOT_FOUND"

	CodeDatabase Code = "DATABASE_ERROR"
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error is a coded error with an optional recovery hint and wrapped cause.
type Error struct {
	Code         Code
	Message      string
	RecoveryHint string
	Retryable    bool
	Issues       diag.List
	cause        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.RecoveryHint != "" {
		b.WriteString(" (hint: ")
		b.WriteString(e.RecoveryHint)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// NotFound builds the appropriate *_NOT_FOUND error for a resource type.
func NotFound(resource, id, hint string) *Error {
	code := CodeNotFound
	switch resource {
	case "archetype":
		code = CodeArchetypeNotFound
	case "card":
		code = CodeCardNotFound
	case "strategy":
		code = CodeStrategyNotFound
	}
	return &Error{
		Code:         code,
		Message:      fmt.Sprintf("%s not found: %s", resource, id),
		RecoveryHint: hint,
	}
}

// Validation builds a semantic VALIDATION_ERROR.
func Validation(message, hint string) *Error {
	return &Error{Code: CodeValidation, Message: message, RecoveryHint: hint}
}

// SchemaValidation wraps slot-validation issues into a single
// SCHEMA_VALIDATION_ERROR so the full issue list reaches the caller.
func SchemaValidation(typeID string, issues diag.List) *Error {
	lines := issues.Messages()
	return &Error{
		Code:         CodeSchemaValidation,
		Message:      fmt.Sprintf("slot validation failed for archetype '%s': %s", typeID, strings.Join(lines, "; ")),
		RecoveryHint: fmt.Sprintf("fetch the schema and example for '%s' and correct the listed fields", typeID),
		Issues:       issues,
	}
}

// InvalidRole rejects an attachment role outside the four known roles.
func InvalidRole(role string, valid []string) *Error {
	return &Error{
		Code:         CodeInvalidRole,
		Message:      fmt.Sprintf("invalid role: %s", role),
		RecoveryHint: fmt.Sprintf("use one of: %s", strings.Join(valid, ", ")),
	}
}

// InvalidStatus rejects a strategy status outside the known lifecycle.
func InvalidStatus(status string, valid []string) *Error {
	return &Error{
		Code:         CodeInvalidStatus,
		Message:      fmt.Sprintf("invalid status: %s", status),
		RecoveryHint: fmt.Sprintf("use one of: %s", strings.Join(valid, ", ")),
	}
}

// Database wraps a storage failure as retryable.
func Database(op string, cause error) *Error {
	return &Error{
		Code:         CodeDatabase,
		Message:      fmt.Sprintf("storage failure during %s: %v", op, cause),
		RecoveryHint: "this error may be transient; retry the request",
		Retryable:    true,
		cause:        cause,
	}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf("internal error: %v", cause), cause: cause}
}

// CodeOf extracts the error code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err is any of the *_NOT_FOUND codes.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeArchetypeNotFound, CodeCardNotFound, CodeStrategyNotFound, CodeAttachmentNotFound:
		return true
	}
	return false
}

// IsRetryable reports whether the caller should retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
