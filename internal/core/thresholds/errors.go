package thresholds

import "errors"

var (
	ErrInvalidDocument = errors.New("invalid thresholds document")
	ErrMissingField    = errors.New("missing thresholds field")
	ErrReadDocument    = errors.New("cannot read thresholds document")
)
