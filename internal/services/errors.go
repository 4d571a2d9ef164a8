// Package services defines the business logic for compliment submission and
// history retrieval. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrEmptyCode is returned when an operation is attempted with a blank
	// recipient code.
	ErrEmptyCode = errors.New("recipient code is empty")

	// ErrEmptyMessage is returned when a submission's message is empty or
	// whitespace-only after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a submission exceeds the maximum
	// configured message length.
	ErrMessageTooLong = errors.New("message too long")
)
