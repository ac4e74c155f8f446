package board

import "errors"

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrUninitialized   = errors.New("position not initialized")
	ErrCorruptState    = errors.New("corrupt position state")
	ErrMalformedMove   = errors.New("malformed move text")
	ErrInvalidFEN      = errors.New("invalid FEN")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
