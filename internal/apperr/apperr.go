// Package apperr is the error taxonomy shared by the auth core and the HTTP
// boundary. Every error leaving the auth service is an *Error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindAuth         Kind = "auth"
	KindNotFound     Kind = "not_found"
	KindInvalidToken Kind = "invalid_token"
	KindDelivery     Kind = "delivery"
	KindHash         Kind = "hash"
	KindInternal     Kind = "internal"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Code: "validation_failed", Message: message, Fields: fields}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Code: "email_taken", Message: message}
}

// Unauthenticated is the 401 flavour of an auth error.
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Code: "unauthenticated", Message: message}
}

// Forbidden is the 403 flavour of an auth error: the caller is known but the
// supplied secret did not match.
func Forbidden(message string) *Error {
	return &Error{Kind: KindAuth, Status: http.StatusForbidden, Code: "forbidden", Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Code: "not_found", Message: message}
}

func InvalidToken(message string) *Error {
	return &Error{Kind: KindInvalidToken, Status: http.StatusBadRequest, Code: "invalid_token", Message: message}
}

func Delivery(message string, err error) *Error {
	return &Error{Kind: KindDelivery, Status: http.StatusInternalServerError, Code: "delivery_failed", Message: message, Err: err}
}

func Hash(err error) *Error {
	return &Error{Kind: KindHash, Status: http.StatusInternalServerError, Code: "hash_failed", Message: "could not process password", Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Code: "internal_error", Message: message, Err: err}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost *Error in the chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ValidationMessage renders a validator rule as a short human readable
// phrase.
func ValidationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "eqfield":
		return "must match " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
