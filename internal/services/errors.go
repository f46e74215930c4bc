// Package services defines the business logic for polls and votes.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes and realtime rejection codes is done by
// the transport layers.
package services

import "errors"

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation error")

// ValidationError reports malformed input. Msg is safe to show to clients.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// Poll-related errors.
var (
	// ErrPollNotFound indicates that the requested poll does not exist.
	ErrPollNotFound = errors.New("poll not found")

	// ErrPollExpired is returned when voting on a poll past its expiry.
	ErrPollExpired = errors.New("poll has expired")

	// ErrDuplicateVote is returned when the voter already has a vote
	// recorded on the poll.
	ErrDuplicateVote = errors.New("already voted on this poll")

	// ErrIdempotencyConflict is returned when an Idempotency-Key is reused
	// with a request body different from the one first recorded under it.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")

	// ErrOptionNotInPoll is returned when the option does not exist or
	// belongs to another poll.
	ErrOptionNotInPoll error = &ValidationError{Msg: "Invalid option for this poll"}

	// ErrNoClientAddr is returned when the transport could not determine the
	// caller's network address.
	ErrNoClientAddr error = &ValidationError{Msg: "Unable to determine client IP address"}
)
