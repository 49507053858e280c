package model

import (
	"errors"
	"fmt"
)

var (
	// User related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUsernameTaken     = fmt.Errorf("username taken: %w", ErrUserAlreadyExists)
	ErrEmailTaken        = fmt.Errorf("email taken: %w", ErrUserAlreadyExists)

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")

	ErrInvalidInput = errors.New("invalid input")
)
