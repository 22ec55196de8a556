package service

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DeliveryError is returned when an outbound message could not be delivered.
type DeliveryError struct {
	Address string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Address, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PollError is returned when a getUpdates round trip fails.
type PollError struct {
	Offset int
	Err    error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll updates at offset %d: %v", e.Offset, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }
