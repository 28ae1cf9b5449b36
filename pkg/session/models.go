package session

import "github.com/google/uuid"

// Conn is the slice of the transport connection the registry needs. Keeping it
// narrow lets tests exercise registration and routing without a live socket,
// and deliberately omits any close operation: the registry never tears down a
// handle, not even a superseded one.
type Conn interface {
	ID() uuid.UUID
	Send(message []byte)
}
