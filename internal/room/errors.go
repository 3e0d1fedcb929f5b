package room

import "errors"

// ErrDatabaseGone is returned when a Connection's database has been
// dropped.
var ErrDatabaseGone = errors.New("room: database is gone")

// ErrUnknownAction is returned by the wire decoder for an Action tag it
// does not recognize, and by the wire encoder for an Action whose Kind is
// none of the four. Store.Apply does not return it: an unknown Kind there
// yields an ApplyResult with no instruction and no broadcast.
var ErrUnknownAction = errors.New("room: unknown action kind")
