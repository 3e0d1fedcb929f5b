package room

import "sync"

// ReplicationSink receives every mutating ApplyResult, in Store sequence
// order, so an external KV can be kept at least as current as any client
// observation. It is invoked synchronously, inside the Database's lock;
// implementations that need to do I/O should queue and return, not block
// here.
type ReplicationSink func(ApplyResult)

// Database is the façade that owns a Store and SubscriptionRegistry under
// one mutex, creates Connections, and exposes the replication hook.
type Database struct {
	mu       sync.Mutex
	store    *Store
	registry *SubscriptionRegistry
	sink     ReplicationSink
}

// NewDatabase returns a Database backed by a fresh, empty Store.
func NewDatabase() *Database {
	return NewDatabaseFromStore(NewStore())
}

// NewDatabaseFromStore returns a Database backed by a pre-populated Store,
// used to rehydrate a room from its replicated KV on cold start.
func NewDatabaseFromStore(store *Store) *Database {
	return &Database{store: store, registry: NewSubscriptionRegistry()}
}

// Connect creates a normal subscriber handle. It has no side effect until
// the caller issues a Get.
func (db *Database) Connect(callback Callback) *Connection {
	return newConnection(callback, db)
}

// ConnectDebug creates a debug handle. The callback immediately receives
// one Init per non-empty key currently in the Store, then observes every
// subsequent mutating ApplyResult (and every Relay broadcast) across all
// keys, not just ones it has "subscribed" to — debug mode has no
// per-key subscription concept.
func (db *Database) ConnectDebug(callback Callback) *Connection {
	conn := newConnection(callback, db)

	db.mu.Lock()
	defer db.mu.Unlock()

	db.registry.SubscribeDebug(conn)
	for key, data := range db.store.Dump() {
		callback(OutboundInitMsg(key, data))
	}
	return conn
}

// SetReplicationSink installs the replication sink. Only one sink is
// supported at a time; calling this again replaces the prior sink.
func (db *Database) SetReplicationSink(sink ReplicationSink) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sink = sink
}

// dispatch handles one inbound request under the Database's lock and
// returns the direct reply to the caller, if any. The whole of apply plus
// fan-out happens while the mutex is held.
func (db *Database) dispatch(conn *Connection, msg InboundMessage) *OutboundMessage {
	switch msg.Kind {
	case InboundPush:
		return db.handlePush(msg.Push)
	case InboundGet:
		return db.handleGet(conn, msg.Get)
	case InboundPing:
		pong := OutboundPongMsg(msg.Ping.Nonce)
		return &pong
	default:
		errMsg := OutboundErrorMsg("unknown message type")
		return &errMsg
	}
}

func (db *Database) handlePush(req PushRequest) *OutboundMessage {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := db.store.Apply(req.Key, req.Value, req.Action)

	// 1. Replication sees mutations before fan-out, in sequence order.
	if result.Mutates() && db.sink != nil {
		db.sink(result)
	}

	// 2. Debug listeners: full Init on mutation, or the raw broadcast for
	// a non-mutating Relay.
	db.registry.fanoutDebug(func(c *Connection) {
		if result.Mutates() {
			c.callback(OutboundInitMsg(result.Key, db.store.Get(result.Key, 0)))
		} else if result.Broadcast != nil {
			c.callback(OutboundPushMsg(result.Key, result.Broadcast.Value, result.Broadcast.Seq))
		}
	})

	// 3. Normal listeners subscribed to this key see the broadcast, if any.
	if result.Broadcast != nil {
		db.registry.fanoutKey(result.Key, func(c *Connection) {
			c.callback(OutboundPushMsg(result.Key, result.Broadcast.Value, result.Broadcast.Seq))
		})
	}

	// 4. The caller gets a direct StreamSize reply only when the log now
	// holds more than one entry.
	if result.SizeAfter > 1 {
		reply := OutboundStreamSizeMsg(result.Key, result.SizeAfter)
		return &reply
	}
	return nil
}

func (db *Database) handleGet(conn *Connection, req GetRequest) *OutboundMessage {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.registry.Subscribe(req.Key, conn)

	if req.Since == nil {
		return nil
	}
	reply := OutboundInitMsg(req.Key, db.store.Get(req.Key, *req.Since))
	return &reply
}
