// Package replication turns a room.ApplyResult into ordered writes against
// an external kv.Store, so a room can be rehydrated after a restart.
// Delete instructions are resolved to a key range and deleted first, then
// the pushed value is written at its own composite key.
package replication

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jamsocket-labs/driftroom/internal/kv"
	"github.com/jamsocket-labs/driftroom/internal/metrics"
	"github.com/jamsocket-labs/driftroom/internal/room"
)

// Bridge applies room.ApplyResults to a kv.Store under a room-scoped key
// prefix, so that KeyAndSeq-style composite keys from different rooms
// never collide in a shared store.
type Bridge struct {
	store   kv.Store
	prefix  string
	log     zerolog.Logger
	metrics *metrics.Registry
}

// New returns a Bridge that writes every key under "room:{roomID}:".
// metricsRegistry may be nil, in which case replication errors are only
// logged.
func New(store kv.Store, roomID string, log zerolog.Logger, metricsRegistry *metrics.Registry) *Bridge {
	return &Bridge{
		store:   store,
		prefix:  "room:" + roomID + ":",
		log:     log.With().Str("component", "replication").Str("room", roomID).Logger(),
		metrics: metricsRegistry,
	}
}

// Sink returns a room.ReplicationSink bound to this Bridge, for
// room.Database.SetReplicationSink. The sink calls Apply synchronously,
// so it blocks the caller (which holds the Database lock) for the
// network I/O against the kv.Store; it has no queue of its own. Errors
// are logged and counted, never returned.
func (b *Bridge) Sink() room.ReplicationSink {
	return func(result room.ApplyResult) {
		if err := b.Apply(context.Background(), result); err != nil {
			b.log.Error().Err(err).Str("key", string(result.Key)).Msg("replicate apply result")
			if b.metrics != nil {
				b.metrics.ReplicationErrors.Inc()
			}
		}
	}
}

// Apply performs the delete, then the push, that result describes:
// deletes are resolved and applied before the new value is written, so a
// crash between the two steps leaves the KV consistent with "value not
// yet pushed" rather than "stale value still present alongside the new
// one".
func (b *Bridge) Apply(ctx context.Context, result room.ApplyResult) error {
	switch result.Delete.Kind {
	case room.DeleteClearAll:
		entries, err := b.store.ScanPrefix(ctx, kv.KeyPrefix(b.prefixed(result.Key)))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := b.store.Delete(ctx, e.Key); err != nil {
				return err
			}
		}
	case room.DeleteUpTo:
		start, end := kv.KeyPrefixUpTo(b.prefixed(result.Key), uint64(result.Delete.Seq))
		if err := b.store.DeleteRange(ctx, start, end); err != nil {
			return err
		}
	}

	switch result.Push.Kind {
	case room.PushBack, room.PushFront:
		key := kv.CompositeKey(b.prefixed(result.Key), uint64(result.Push.Value.Seq))
		if err := b.store.Put(ctx, key, result.Push.Value.Value.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bridge) prefixed(key room.Key) string {
	return b.prefix + string(key)
}

// Load scans every entry under roomID's prefix (the same "room:{roomID}:"
// prefix New uses) and rebuilds a room.Store from them, for cold-start
// rehydration.
func Load(ctx context.Context, store kv.Store, roomID string) (*room.Store, error) {
	prefix := "room:" + roomID + ":"
	entries, err := store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	rs := room.NewStore()
	for _, e := range entries {
		key, seq, ok := kv.ParseCompositeKey(e.Key[len(prefix):])
		if !ok {
			continue
		}
		rs.Restore(room.Key(key), room.SequenceNumber(seq), room.NewValue(e.Value))
	}
	return rs, nil
}

// Clear deletes every entry under roomID's prefix, wiping its entire KV
// namespace. Used on idle eviction so a room ID reused later doesn't
// rehydrate stale pre-eviction data through Load.
func Clear(ctx context.Context, store kv.Store, roomID string) error {
	prefix := "room:" + roomID + ":"
	entries, err := store.ScanPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := store.Delete(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}
