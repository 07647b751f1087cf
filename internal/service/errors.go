package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrDuplicateRequest = errors.New("a pending friend request already exists between these users")
	ErrAlreadyProcessed = errors.New("friend request already processed")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrNotFriends       = errors.New("users are not friends")
	ErrNotParticipant   = errors.New("user is not a chat participant")
	ErrChatInactive     = errors.New("chat is no longer active")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
