package packing

import "errors"

var (
	// ErrInvalidConfig is returned by New for malformed parameters, before
	// any placement is attempted.
	ErrInvalidConfig = errors.New("invalid packing configuration")
	// ErrInvalidTransition is returned by Start or Pause from a state that
	// does not allow it.
	ErrInvalidTransition = errors.New("invalid run state transition")
	// ErrReplayMismatch is returned when a committed disk's radius does not
	// match the radius the sequence prescribes at the current index.
	ErrReplayMismatch = errors.New("disk radius does not match the area sequence")
	// ErrOutOfBounds is returned when a committed disk crosses the container.
	ErrOutOfBounds = errors.New("disk lies outside the container")
	// ErrOverlap is returned when a committed disk overlaps a placed disk.
	ErrOverlap = errors.New("disk overlaps a placed disk")
)
