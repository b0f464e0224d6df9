package services

import (
	"errors"
	"fmt"
)

// Code identifies a caller-correctable failure.
type Code string

const (
	CodeEmptyContent       Code = "EmptyContent"
	CodeSelfSend           Code = "SelfSend"
	CodeTextTooLong        Code = "TextTooLong"
	CodeMissingEmoji       Code = "MissingEmoji"
	CodePeerNotFound       Code = "PeerNotFound"
	CodeMessageNotFound    Code = "MessageNotFound"
	CodeMissingFields      Code = "MissingFields"
	CodePasswordTooShort   Code = "PasswordTooShort"
	CodePasswordTooLong    Code = "PasswordTooLong"
	CodeInvalidEmail       Code = "InvalidEmail"
	CodeEmailTaken         Code = "EmailTaken"
	CodeInvalidCredentials Code = "InvalidCredentials"
)

// ValidationError represents a request the caller can fix and resubmit.
type ValidationError struct {
	Code    Code
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(code Code, message string) ValidationError {
	return ValidationError{Code: code, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// NotFoundError represents a referenced identity or message that does not resolve.
type NotFoundError struct {
	Code    Code
	Message string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFoundError constructs NotFoundError
func NewNotFoundError(code Code, message string) NotFoundError {
	return NotFoundError{Code: code, Message: message}
}

// IsNotFoundError checks if error is NotFoundError
func IsNotFoundError(err error) bool {
	var ne NotFoundError
	return errors.As(err, &ne)
}

// ErrorCode returns the Code carried by err, or "" for infrastructure errors.
func ErrorCode(err error) Code {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var ne NotFoundError
	if errors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

var (
	errEmptyContent       = NewValidationError(CodeEmptyContent, "Text or image is required.")
	errSelfSend           = NewValidationError(CodeSelfSend, "Cannot send messages to yourself.")
	errTextTooLong        = NewValidationError(CodeTextTooLong, "Text must be at most 300 characters.")
	errMissingEmoji       = NewValidationError(CodeMissingEmoji, "Emoji is required")
	errPeerNotFound       = NewNotFoundError(CodePeerNotFound, "Receiver not found.")
	errMessageNotFound    = NewNotFoundError(CodeMessageNotFound, "Message not found")
	errMissingFields      = NewValidationError(CodeMissingFields, "All fields are required")
	errPasswordTooShort   = NewValidationError(CodePasswordTooShort, "Password must be at least 6 characters long")
	errPasswordTooLong    = NewValidationError(CodePasswordTooLong, "Password must be at most 72 bytes long")
	errInvalidEmail       = NewValidationError(CodeInvalidEmail, "Invalid email format")
	errEmailTaken         = NewValidationError(CodeEmailTaken, "Email already exists")
	errInvalidCredentials = NewValidationError(CodeInvalidCredentials, "Invalid credentials")
)
