package roomdir

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/jamsocket-labs/driftroom/internal/kv"
	"github.com/jamsocket-labs/driftroom/internal/metrics"
	"github.com/jamsocket-labs/driftroom/internal/room"
)

func TestDirectoryGetCreatesARoomOnFirstAccessAndReusesItAfter(t *testing.T) {
	d := New(nil, time.Hour, zerolog.Nop(), nil)
	ctx := context.Background()

	first, err := d.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := d.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same *room.Database on repeated Get calls")
	}
	if d.Count() != 1 {
		t.Fatalf("expected 1 room, got %d", d.Count())
	}
}

func TestDirectoryGetRehydratesFromStore(t *testing.T) {
	store := kv.NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, "room:abc:"+kv.CompositeKey("k", 1), []byte(`1`)); err != nil {
		t.Fatalf("seed put: %v", err)
	}

	d := New(store, time.Hour, zerolog.Nop(), nil)
	db, err := d.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	var got []room.OutboundMessage
	db.ConnectDebug(func(msg room.OutboundMessage) { got = append(got, msg) })
	if len(got) != 1 || got[0].Kind != room.OutboundInit {
		t.Fatalf("expected a rehydrated init snapshot, got %+v", got)
	}
}

func TestDirectoryNewRoomIDsAreUnique(t *testing.T) {
	a := NewRoomID()
	b := NewRoomID()
	if a == b {
		t.Fatalf("expected distinct room IDs, got %q twice", a)
	}
}

func TestDirectoryTouchOnUnknownRoomIsANoop(t *testing.T) {
	d := New(nil, time.Hour, zerolog.Nop(), nil)
	d.Touch("does-not-exist")
	if d.Count() != 0 {
		t.Fatalf("expected Touch to not create a room, got count %d", d.Count())
	}
}

func TestDirectorySweepEvictsOnlyRoomsPastTheIdleTimeout(t *testing.T) {
	d := New(nil, 10*time.Millisecond, zerolog.Nop(), nil)
	ctx := context.Background()

	if _, err := d.Get(ctx, "stale"); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := d.Get(ctx, "fresh"); err != nil {
		t.Fatalf("get: %v", err)
	}

	evicted := d.Sweep(ctx)
	if evicted != 1 {
		t.Fatalf("expected exactly 1 eviction, got %d", evicted)
	}
	if d.Count() != 1 {
		t.Fatalf("expected 1 room left, got %d", d.Count())
	}
}

func TestDirectoryTouchDelaysEviction(t *testing.T) {
	d := New(nil, 20*time.Millisecond, zerolog.Nop(), nil)
	ctx := context.Background()

	if _, err := d.Get(ctx, "room"); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(12 * time.Millisecond)
	d.Touch("room")
	time.Sleep(12 * time.Millisecond)

	if evicted := d.Sweep(ctx); evicted != 0 {
		t.Fatalf("expected the touch to delay eviction, but %d rooms were evicted", evicted)
	}
}

func TestDirectorySweepClearsTheEvictedRoomsKVNamespace(t *testing.T) {
	store := kv.NewMemoryStore()
	ctx := context.Background()
	d := New(store, 10*time.Millisecond, zerolog.Nop(), nil)

	db, err := d.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	conn := db.Connect(func(room.OutboundMessage) {})
	pushMsg := room.InboundMessage{Kind: room.InboundPush, Push: room.PushRequest{Key: "k", Value: room.NewValue([]byte(`1`)), Action: room.Append()}}
	if err := conn.Send(pushMsg); err != nil {
		t.Fatalf("send: %v", err)
	}

	entries, err := store.ScanPrefix(ctx, "room:abc:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the mutation to be replicated before eviction, got %d entries", len(entries))
	}

	time.Sleep(20 * time.Millisecond)
	if evicted := d.Sweep(ctx); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	entries, err = store.ScanPrefix(ctx, "room:abc:")
	if err != nil {
		t.Fatalf("scan after sweep: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the evicted room's KV namespace to be cleared, got %+v", entries)
	}
}

func TestDirectorySweepDoesNotRehydrateStaleDataAfterEviction(t *testing.T) {
	store := kv.NewMemoryStore()
	ctx := context.Background()
	d := New(store, 10*time.Millisecond, zerolog.Nop(), nil)

	db, err := d.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	conn := db.Connect(func(room.OutboundMessage) {})
	pushMsg := room.InboundMessage{Kind: room.InboundPush, Push: room.PushRequest{Key: "k", Value: room.NewValue([]byte(`1`)), Action: room.Append()}}
	if err := conn.Send(pushMsg); err != nil {
		t.Fatalf("send: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if evicted := d.Sweep(ctx); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	reopened, err := d.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get after eviction: %v", err)
	}
	var got []room.OutboundMessage
	reopened.ConnectDebug(func(msg room.OutboundMessage) { got = append(got, msg) })
	if len(got) != 0 {
		t.Fatalf("expected a fresh room with no prior history, got %+v", got)
	}
}

func TestDirectoryMetricsTrackActiveRoomsAndEvictions(t *testing.T) {
	reg := metrics.NewRegistry()
	d := New(nil, 10*time.Millisecond, zerolog.Nop(), reg)
	ctx := context.Background()

	if _, err := d.Get(ctx, "abc"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := testutil.ToFloat64(reg.ActiveRooms); got != 1 {
		t.Fatalf("expected ActiveRooms == 1 after Get, got %v", got)
	}

	time.Sleep(20 * time.Millisecond)
	if evicted := d.Sweep(ctx); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if got := testutil.ToFloat64(reg.ActiveRooms); got != 0 {
		t.Fatalf("expected ActiveRooms == 0 after Sweep, got %v", got)
	}
	if got := testutil.ToFloat64(reg.RoomsEvicted); got != 1 {
		t.Fatalf("expected RoomsEvicted == 1, got %v", got)
	}
}
