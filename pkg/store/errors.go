package store

import "errors"

// StoreError represents a typed error from store operations.
//
// These are infrastructure-level outcomes (record missing, duplicate key,
// backend I/O failure) as opposed to business decisions (authorization,
// notification rules), which live above the store boundary and are expressed
// as plain return values there.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Key is the record key related to the error (filename or username)
	Key string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record or account doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record or account with the key already exists
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty filename, empty username, unknown permission string
	ErrInvalidArgument

	// ErrIOError indicates an I/O error in the backing store
	ErrIOError
)

// NotFound builds a StoreError with ErrNotFound for the given key.
func NotFound(message, key string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: message, Key: key}
}

// AlreadyExists builds a StoreError with ErrAlreadyExists for the given key.
func AlreadyExists(message, key string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: message, Key: key}
}

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == ErrNotFound
}

// IsAlreadyExists reports whether err is a StoreError with code ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == ErrAlreadyExists
}
