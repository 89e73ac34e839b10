package remote

import "errors"

// Messages reported by the identity service and the stores. Both the
// in-memory services and the server use them so clients see the same text.
const (
	MsgInvalidEmail     = "The email address is badly formatted."
	MsgEmailInUse       = "The email address is already in use by another account."
	MsgUserNotFound     = "There is no user record corresponding to this identifier. The user may have been deleted."
	MsgWrongPassword    = "The password is invalid or the user does not have a password."
	MsgWeakPassword     = "Password should be at least 6 characters"
	MsgNotSignedIn      = "This operation requires a signed in user."
	MsgCredentialTooOld = "The user's credential is no longer valid. The user must sign in again."
	MsgPermissionDenied = "Permission denied."
	MsgInvalidChannel   = "Channel name and details are required."
	MsgInvalidUserName  = "User name is required and must be at most 100 characters."
)

// Error is a failure reported by a remote service. The message is shown to
// the user unchanged.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a remote error for op
func NewError(op, message string) *Error {
	return &Error{Op: op, Message: message}
}

// Message returns the user-facing text of err. Remote errors give their
// message verbatim, anything else its Error() string.
func Message(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
