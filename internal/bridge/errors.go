package bridge

import "github.com/pkg/errors"

var (
	ErrMalformedFrame = errors.New("malformed engine frame")
	ErrUnknownPhase   = errors.New("unknown collision phase")
)
