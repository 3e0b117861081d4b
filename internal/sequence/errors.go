package sequence

import "errors"

var (
	// ErrInvalidParams is returned when a family's parameters would produce
	// non-positive, non-finite or growing areas.
	ErrInvalidParams = errors.New("invalid area sequence parameters")
	// ErrUnknownFamily is returned for a family name New does not recognise.
	ErrUnknownFamily = errors.New("unknown area sequence family")
)
