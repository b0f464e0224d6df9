package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when the channel carries no session credential.
	ErrNoToken = errors.New("no session token")

	// ErrInvalidSignature is returned when the token is malformed or its signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired is returned when the token was issued more than the session lifetime ago.
	ErrExpired = errors.New("session token expired")

	// ErrIdentityNotFound is returned when the token references an identity that no longer exists.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Handshake refusal codes sent to websocket clients.
const (
	CodeNoToken      = "NoToken"
	CodeInvalidToken = "InvalidToken"
	CodeUserNotFound = "UserNotFound"
)

// IsAuthError reports whether err is one of the credential failures above
// (as opposed to an infrastructure failure during identity lookup).
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrIdentityNotFound)
}

// HandshakeError refuses a connection handshake with a client-facing code.
type HandshakeError struct {
	Code string
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake refused (%s): %v", e.Code, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// handshakeCode collapses the credential failures into the three codes the
// connection channel exposes.
func handshakeCode(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return CodeNoToken
	case errors.Is(err, ErrIdentityNotFound):
		return CodeUserNotFound
	default:
		return CodeInvalidToken
	}
}

// unauthorizedMessage maps credential failures to the request-channel messages.
func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "Unauthorized - No Token Provided"
	case errors.Is(err, ErrIdentityNotFound):
		return "Unauthorized - User Not Found"
	default:
		return "Unauthorized - Invalid Token"
	}
}
