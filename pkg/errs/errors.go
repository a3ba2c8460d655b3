// Package errs defines the failure kinds shared by the storefront core.
//
// Every kind is a concrete type so callers branch with errors.As; kinds that
// originate from a lower layer keep it reachable through Unwrap.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError is a user-correctable input problem. Message is meant to be
// shown as-is.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TransportError means the remote service could not be reached or answered
// with something that is not a valid response.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Cause)
	}
	return e.Op + ": transport failure"
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ApplicationError is a well-formed response with success=false.
type ApplicationError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request rejected (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NotFoundError reports a lookup of an application or order that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// PersistenceError wraps a failed read or write against the local store.
type PersistenceError struct {
	Op    string
	Key   string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsApplication(err error) bool {
	var target *ApplicationError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
