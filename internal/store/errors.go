package store

import "errors"

var (
	// ErrRoomNotFound is returned when an operation references a room code
	// with no corresponding room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomSuspended is returned when a user message is appended to a
	// suspended room. Administrative notices are not gated.
	ErrRoomSuspended = errors.New("room suspended")
)
