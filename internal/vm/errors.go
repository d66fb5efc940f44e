package vm

import (
	"errors"
	"fmt"
)

// Kind categorizes a failed operation. Every kind aborts and rolls back the
// enclosing atomic operation; there is no partial-success path.
type Kind string

const (
	// KindUnauthorized: the caller lacks the required capability.
	KindUnauthorized Kind = "Unauthorized"

	// KindNotAdmin: the caller does not hold the role's admin role.
	KindNotAdmin Kind = "NotAdmin"

	// KindArityMismatch: parallel-array inputs of differing length.
	KindArityMismatch Kind = "ArityMismatch"

	// KindAddressCollision: the predicted address is already occupied.
	KindAddressCollision Kind = "AddressCollision"

	// KindInitializationFailed: a component initializer rejected its input.
	KindInitializationFailed Kind = "InitializationFailed"

	// KindAlreadyInitialized: an initializer was invoked a second time.
	KindAlreadyInitialized Kind = "AlreadyInitialized"

	// KindNotInitialized: a component was called before its initializer ran.
	KindNotInitialized Kind = "NotInitialized"

	// KindSubcallReverted: a call forwarded by the core executor failed.
	KindSubcallReverted Kind = "SubcallReverted"

	// KindStepFailed: an orchestrator batch step failed.
	KindStepFailed Kind = "StepFailed"

	// KindPrivilegeLeak: the orchestrator still held a capability after release.
	KindPrivilegeLeak Kind = "PrivilegeLeak"

	// KindRoleExists and KindRoleMissing: administrative operations on
	// already-present or absent roles.
	KindRoleExists  Kind = "RoleExists"
	KindRoleMissing Kind = "RoleMissing"

	// KindNoCode: calldata sent to an address without a component.
	KindNoCode Kind = "NoCode"

	// KindUnknownMethod: the selector matches no method of the component.
	KindUnknownMethod Kind = "UnknownMethod"

	// KindInvalidInput: calldata or arguments could not be decoded or used.
	KindInvalidInput Kind = "InvalidInput"

	// KindInsufficientBalance: a transfer exceeds the sender's balance.
	KindInsufficientBalance Kind = "InsufficientBalance"

	// KindStepsExceeded: the transaction made more calls than the quota allows.
	KindStepsExceeded Kind = "StepsExceeded"

	// KindDepthExceeded: call nesting went past the depth limit.
	KindDepthExceeded Kind = "DepthExceeded"

	// KindInternal: a storage or encoding failure, not a domain outcome.
	KindInternal Kind = "Internal"
)

// Error is a failed operation with its kind. Index is the offending position
// for multi-step operations and -1 otherwise. Err is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Index   int
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind anywhere
// in the chain.
var (
	ErrUnauthorized         = &Error{Kind: KindUnauthorized, Index: -1}
	ErrNotAdmin             = &Error{Kind: KindNotAdmin, Index: -1}
	ErrArityMismatch        = &Error{Kind: KindArityMismatch, Index: -1}
	ErrAddressCollision     = &Error{Kind: KindAddressCollision, Index: -1}
	ErrInitializationFailed = &Error{Kind: KindInitializationFailed, Index: -1}
	ErrAlreadyInitialized   = &Error{Kind: KindAlreadyInitialized, Index: -1}
	ErrNotInitialized       = &Error{Kind: KindNotInitialized, Index: -1}
	ErrSubcallReverted      = &Error{Kind: KindSubcallReverted, Index: -1}
	ErrStepFailed           = &Error{Kind: KindStepFailed, Index: -1}
	ErrPrivilegeLeak        = &Error{Kind: KindPrivilegeLeak, Index: -1}
	ErrRoleExists           = &Error{Kind: KindRoleExists, Index: -1}
	ErrRoleMissing          = &Error{Kind: KindRoleMissing, Index: -1}
	ErrNoCode               = &Error{Kind: KindNoCode, Index: -1}
	ErrUnknownMethod        = &Error{Kind: KindUnknownMethod, Index: -1}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput, Index: -1}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance, Index: -1}
	ErrStepsExceeded        = &Error{Kind: KindStepsExceeded, Index: -1}
	ErrDepthExceeded        = &Error{Kind: KindDepthExceeded, Index: -1}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s at index %d", msg, e.Index)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Errorf builds an *Error of kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Index: -1}
}

// Wrap builds an *Error of kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Index: -1, Err: cause}
}

// AtIndex builds an *Error of kind for step i of a multi-step operation.
func AtIndex(kind Kind, i int, cause error) *Error {
	return &Error{Kind: kind, Index: i, Err: cause}
}

// Internal wraps a storage or encoding failure.
func Internal(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Index: -1, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or ""
// when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RootKind returns the kind of the innermost *Error in err's chain. For a
// failed orchestration this is the step's own failure under StepFailed.
func RootKind(err error) Kind {
	var kind Kind
	for err != nil {
		if e, ok := err.(*Error); ok {
			kind = e.Kind
		}
		err = errors.Unwrap(err)
	}
	return kind
}

// IndexOf returns the first step index recorded in err's chain, or -1.
func IndexOf(err error) int {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Index >= 0 {
			return e.Index
		}
		err = errors.Unwrap(err)
	}
	return -1
}
