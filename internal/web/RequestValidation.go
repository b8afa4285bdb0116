// This file contains the actual validator implementation for incoming http requests.
//
// Field rules live in the request structs (internal/common). Error messages are rendered with the same
// field names the client sent, so a 400 tells the caller exactly which field to fix.

package web

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/users-api/webserver/internal/models/user"
)

var (
	// ErrBadRequestBody is returned when the body cannot be decoded into the request struct.
	ErrBadRequestBody = errors.New("malformed request body")
	// ErrEmptyBatch is returned when a bulk request body is not a non-empty JSON array.
	ErrEmptyBatch = errors.New("request body must be a non-empty array of users")
)

var validate *validator.Validate

// Initialize the validator with json field names
func init() {
	validate = user.NewValidator()
}

// RequestError is a client error that maps to 400 Bad Request.
type RequestError struct {
	Err     error
	Message string
}

func (e *RequestError) Error() string { return e.Message }
func (e *RequestError) Unwrap() error { return e.Err }

// ValidateParams binds the route parameters into req and validates it.
func ValidateParams(c *fiber.Ctx, req interface{}) error {
	if err := c.ParamsParser(req); err != nil {
		return &RequestError{Err: err, Message: err.Error()}
	}
	return validateStruct(req)
}

// ValidateBody decodes the JSON body into req and validates it.
// An empty body leaves req at its zero value, which the struct rules then judge.
func ValidateBody(c *fiber.Ctx, req interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return &RequestError{Err: ErrBadRequestBody, Message: fmt.Sprintf("%s: %s", ErrBadRequestBody, err)}
		}
	}
	return validateStruct(req)
}

// ValidateBatch decodes a JSON array body into a slice of T and validates every element.
// The body must be an array with at least one element.
func ValidateBatch[T any](c *fiber.Ctx) ([]T, error) {
	var reqs []T
	if len(c.Body()) == 0 {
		return nil, &RequestError{Err: ErrEmptyBatch, Message: ErrEmptyBatch.Error()}
	}
	if err := c.BodyParser(&reqs); err != nil {
		return nil, &RequestError{Err: ErrEmptyBatch, Message: ErrEmptyBatch.Error()}
	}
	if len(reqs) == 0 {
		return nil, &RequestError{Err: ErrEmptyBatch, Message: ErrEmptyBatch.Error()}
	}

	for i := range reqs {
		if err := validate.Struct(&reqs[i]); err != nil {
			return nil, &RequestError{Err: err, Message: fmt.Sprintf("user at index %d: %s", i, user.ValidationMessage(err))}
		}
	}
	return reqs, nil
}

func validateStruct(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return &RequestError{Err: err, Message: user.ValidationMessage(err)}
	}
	return nil
}
