package provisioning

import "fmt"

// Kind classifies a provisioning failure. The HTTP layer maps kinds to status
// codes and echoes the kind to the client.
type Kind string

const (
	KindUnauthenticated        Kind = "Unauthenticated"
	KindIdentityLookupFailed   Kind = "IdentityLookupFailed"
	KindForbidden              Kind = "Forbidden"
	KindInvalidArgument        Kind = "InvalidArgument"
	KindSelfDeletionForbidden  Kind = "SelfDeletionForbidden"
	KindIdentityCreationFailed Kind = "IdentityCreationFailed"
	KindIdentityDeletionFailed Kind = "IdentityDeletionFailed"
	KindRoleAssignmentFailed   Kind = "RoleAssignmentFailed"
	KindRoleRemovalFailed      Kind = "RoleRemovalFailed"
	KindBootstrapFailed        Kind = "BootstrapFailed"
)

// Error is returned by every Service operation. Message is safe to show to
// the caller verbatim; Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrUnauthenticated        = &Error{Kind: KindUnauthenticated}
	ErrIdentityLookupFailed   = &Error{Kind: KindIdentityLookupFailed}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrSelfDeletionForbidden  = &Error{Kind: KindSelfDeletionForbidden}
	ErrIdentityCreationFailed = &Error{Kind: KindIdentityCreationFailed}
	ErrIdentityDeletionFailed = &Error{Kind: KindIdentityDeletionFailed}
	ErrRoleAssignmentFailed   = &Error{Kind: KindRoleAssignmentFailed}
	ErrRoleRemovalFailed      = &Error{Kind: KindRoleRemovalFailed}
	ErrBootstrapFailed        = &Error{Kind: KindBootstrapFailed}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind. A self-deletion attempt is also an invalid argument.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindSelfDeletionForbidden && t.Kind == KindInvalidArgument
}
