// internal/lobby/errors.go
package lobby

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a lobby operation can surface. The set is
// closed: no operation returns an error outside this taxonomy.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNotAuthorized
	KindInvalidState
	KindLobbyFull
	KindAlreadyMember
	KindNotMember
	KindInvalidPassword
	KindAlreadyInvited
	KindInviteNotPending
	KindInvalidCapacity
	KindConcurrentModification
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotAuthorized:
		return "not_authorized"
	case KindInvalidState:
		return "invalid_state"
	case KindLobbyFull:
		return "lobby_full"
	case KindAlreadyMember:
		return "already_member"
	case KindNotMember:
		return "not_member"
	case KindInvalidPassword:
		return "invalid_password"
	case KindAlreadyInvited:
		return "already_invited"
	case KindInviteNotPending:
		return "invite_not_pending"
	case KindInvalidCapacity:
		return "invalid_capacity"
	case KindConcurrentModification:
		return "concurrent_modification"
	case KindStoreUnavailable:
		return "store_unavailable"
	}
	return "unknown"
}

// Error is a typed lobby failure. Domain errors carry no cause; store
// failures wrap the underlying error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func storeError(msg string, cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Msg: msg, Err: cause}
}

// ErrKind extracts the Kind from err, or 0 if err is not a lobby error.
func ErrKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
