package models

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist, or when an
	// activity exists but is not joinable.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyJoined is returned when a user joins an activity twice.
	ErrAlreadyJoined = errors.New("User already joined activity")
	// ErrNoSeatsLeft is returned when an activity is full or has ended.
	ErrNoSeatsLeft = errors.New("No available seats left")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)
