package room

import (
	"encoding/json"
	"testing"
)

func TestInboundPushRoundTripsThroughJSON(t *testing.T) {
	orig := InboundMessage{
		Kind: InboundPush,
		Push: PushRequest{Key: "k", Value: NewValue([]byte(`{"n":1}`)), Action: CompactAt(7)},
	}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got InboundMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != InboundPush || got.Push.Key != "k" || got.Push.Action.Kind != ActionCompact || got.Push.Action.Seq != 7 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Push.Value.Equal(orig.Push.Value) {
		t.Fatalf("value mismatch after round trip: %s vs %s", got.Push.Value.Bytes(), orig.Push.Value.Bytes())
	}
}

func TestInboundGetOmittedSeqRoundTripsToNil(t *testing.T) {
	orig := InboundMessage{Kind: InboundGet, Get: GetRequest{Key: "k"}}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got InboundMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Get.Since != nil {
		t.Fatalf("expected Since to stay nil when seq is omitted, got %v", *got.Get.Since)
	}
}

func TestInboundGetExplicitZeroSeqRoundTripsToZero(t *testing.T) {
	zero := SequenceNumber(0)
	orig := InboundMessage{Kind: InboundGet, Get: GetRequest{Key: "k", Since: &zero}}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got InboundMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Get.Since == nil {
		t.Fatalf("expected Since to survive as a present zero, got nil")
	}
	if *got.Get.Since != 0 {
		t.Fatalf("expected Since == 0, got %d", *got.Get.Since)
	}
}

func TestUnmarshalUnknownMessageTypeFails(t *testing.T) {
	var got InboundMessage
	err := json.Unmarshal([]byte(`{"type":"nonsense"}`), &got)
	if err == nil {
		t.Fatalf("expected an error for an unknown message type")
	}
}

func TestOutboundInitRoundTripsThroughJSON(t *testing.T) {
	orig := OutboundInitMsg("k", []SequenceValue{
		{Seq: 1, Value: NewValue([]byte(`1`))},
		{Seq: 2, Value: NewValue([]byte(`2`))},
	})
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got OutboundMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != OutboundInit || got.Key != "k" || len(got.Data) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Data[0].Seq != 1 || got.Data[1].Seq != 2 {
		t.Fatalf("unexpected seqs: %+v", got.Data)
	}
}

func TestOutboundInitWithNoDataMarshalsEmptyArrayNotNull(t *testing.T) {
	msg := OutboundInitMsg("k", nil)
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	if string(raw["data"]) != "[]" {
		t.Fatalf("expected data to serialize as [], got %s", raw["data"])
	}
}

func TestActionWireTagsRoundTrip(t *testing.T) {
	cases := []Action{Relay(), Append(), Replace(), CompactAt(5)}
	for _, a := range cases {
		w, err := actionToWire(a)
		if err != nil {
			t.Fatalf("actionToWire(%+v): %v", a, err)
		}
		got, err := wireToAction(*w)
		if err != nil {
			t.Fatalf("wireToAction(%+v): %v", w, err)
		}
		if got != a {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, a)
		}
	}
}
