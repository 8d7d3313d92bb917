package types

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error types reported in the JSON error envelope.
const (
	TypeNotFound     = "not_found"
	TypeForbidden    = "forbidden"
	TypeConflict     = "conflict"
	TypeValidation   = "validation"
	TypeUnauthorized = "unauthorized"
)

type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Is matches another CustomError with the same code and type, so sentinel
// errors can be compared with errors.Is after wrapping.
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type && (t.Message == "" || t.Message == e.Message)
}

// NotFound builds a 404 error.
func NotFound(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: fiber.StatusNotFound, Message: fmt.Sprintf(format, args...), Type: TypeNotFound}
}

// Forbidden builds a 403 error.
func Forbidden(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: fiber.StatusForbidden, Message: fmt.Sprintf(format, args...), Type: TypeForbidden}
}

// Conflict builds a 409 error.
func Conflict(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: fiber.StatusConflict, Message: fmt.Sprintf(format, args...), Type: TypeConflict}
}

// BadRequest builds a 400 error.
func BadRequest(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: fiber.StatusBadRequest, Message: fmt.Sprintf(format, args...), Type: TypeValidation}
}

// Unauthorized builds a 401 error.
func Unauthorized(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: fiber.StatusUnauthorized, Message: fmt.Sprintf(format, args...), Type: TypeUnauthorized}
}

// StatusOf returns the HTTP status carried by err, or 500 when err is unclassified.
func StatusOf(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
