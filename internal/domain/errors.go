package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCodeExpired        = errors.New("booking code expired")
	ErrAlreadySubmitted   = errors.New("guest form already submitted")
	ErrCodeSpaceExhausted = errors.New("could not generate a unique booking code")
	ErrDuplicate          = errors.New("already exists")
)
