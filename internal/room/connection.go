package room

import "weak"

// Callback is how a Connection delivers outbound messages to whatever
// transport created it. It must not block: implementations should hand
// off to a bounded per-connection queue and return immediately.
type Callback func(OutboundMessage)

// Connection is a single client session. It holds a weak reference to its
// Database so that a Connection outliving its Database fails cleanly
// instead of keeping the Database alive.
type Connection struct {
	callback Callback
	database weak.Pointer[Database]
}

func newConnection(callback Callback, db *Database) *Connection {
	return &Connection{callback: callback, database: weak.Make(db)}
}

// Send delivers one inbound request to this Connection's Database. Any
// direct reply (StreamSize for Push, Init for Get, Pong for Ping) is
// handed to the callback before Send returns.
func (c *Connection) Send(msg InboundMessage) error {
	db := c.database.Value()
	if db == nil {
		return ErrDatabaseGone
	}
	reply := db.dispatch(c, msg)
	if reply != nil {
		c.callback(*reply)
	}
	return nil
}
