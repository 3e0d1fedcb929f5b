// Package roomdir maps room identifiers to lazily-created room.Database
// instances, each wired to its own replication bridge, and tracks the
// idle timer used to evict rooms nobody has touched recently.
package roomdir

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jamsocket-labs/driftroom/internal/kv"
	"github.com/jamsocket-labs/driftroom/internal/metrics"
	"github.com/jamsocket-labs/driftroom/internal/replication"
	"github.com/jamsocket-labs/driftroom/internal/room"
)

// entry bundles a room.Database with the bookkeeping the Directory needs to
// decide when it's gone idle. touchedAt is an atomic Unix nanosecond
// timestamp so concurrent Get and Touch calls can refresh it without
// holding the Directory's write lock.
type entry struct {
	db        *room.Database
	touchedAt atomic.Int64
}

// Directory lazily creates and owns one room.Database per room ID, and
// sweeps out entries that have gone untouched past an idle timeout.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*entry

	store   kv.Store
	log     zerolog.Logger
	metrics *metrics.Registry

	idleTimeout time.Duration
}

// New returns an empty Directory. store may be nil, in which case rooms
// run with no replication and do not rehydrate across restarts.
// metricsRegistry may also be nil, in which case the directory simply
// doesn't record metrics.
func New(store kv.Store, idleTimeout time.Duration, log zerolog.Logger, metricsRegistry *metrics.Registry) *Directory {
	return &Directory{
		rooms:       make(map[string]*entry),
		store:       store,
		idleTimeout: idleTimeout,
		log:         log.With().Str("component", "roomdir").Logger(),
		metrics:     metricsRegistry,
	}
}

// NewRoomID returns a fresh, randomly generated room identifier.
func NewRoomID() string {
	return uuid.NewString()
}

// Get returns the room.Database for id, creating and, if a store is
// configured, rehydrating it on first access. Every call also touches the
// room's idle timer, on every request rather than only on mutations.
func (d *Directory) Get(ctx context.Context, id string) (*room.Database, error) {
	d.mu.RLock()
	e, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		d.touch(e)
		return e.db, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.rooms[id]; ok {
		d.touch(e)
		return e.db, nil
	}

	db, err := d.open(ctx, id)
	if err != nil {
		return nil, err
	}
	e = &entry{db: db}
	e.touchedAt.Store(time.Now().UnixNano())
	d.rooms[id] = e
	if d.metrics != nil {
		d.metrics.ActiveRooms.Inc()
	}
	return db, nil
}

func (d *Directory) open(ctx context.Context, id string) (*room.Database, error) {
	if d.store == nil {
		return room.NewDatabase(), nil
	}

	store, err := replication.Load(ctx, d.store, id)
	if err != nil {
		return nil, err
	}
	db := room.NewDatabaseFromStore(store)
	bridge := replication.New(d.store, id, d.log, d.metrics)
	db.SetReplicationSink(bridge.Sink())
	return db, nil
}

func (d *Directory) touch(e *entry) {
	e.touchedAt.Store(time.Now().UnixNano())
}

// Touch refreshes id's idle timer without creating it if it doesn't
// already exist, for callers (like inbound frame handling) that want to
// delay eviction without paying for a Get/rehydrate.
func (d *Directory) Touch(id string) {
	d.mu.RLock()
	e, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		d.touch(e)
	}
}

// Count returns the number of rooms currently held open.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Sweep evicts every room whose idle timer has expired, returning how many
// were removed. For each evicted room it also clears the room's entire KV
// namespace, so a room ID reused later doesn't rehydrate stale
// pre-eviction data through open/replication.Load. Call this periodically
// from a ticker.
func (d *Directory) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-d.idleTimeout)

	d.mu.Lock()
	var stale []string
	for id, e := range d.rooms {
		if time.Unix(0, e.touchedAt.Load()).Before(cutoff) {
			stale = append(stale, id)
			delete(d.rooms, id)
		}
	}
	d.mu.Unlock()

	if d.store != nil {
		for _, id := range stale {
			if err := replication.Clear(ctx, d.store, id); err != nil {
				d.log.Error().Err(err).Str("room", id).Msg("clear evicted room's kv namespace")
				if d.metrics != nil {
					d.metrics.ReplicationErrors.Inc()
				}
			}
		}
	}

	if d.metrics != nil {
		for range stale {
			d.metrics.ActiveRooms.Dec()
			d.metrics.RoomsEvicted.Inc()
		}
	}
	if len(stale) > 0 {
		d.log.Info().Int("count", len(stale)).Msg("evicted idle rooms")
	}
	return len(stale)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (d *Directory) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Sweep(ctx)
			}
		}
	}()
}
