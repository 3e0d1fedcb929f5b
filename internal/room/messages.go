package room

import (
	"encoding/json"
	"fmt"
)

// This file is the wire-level message schema: a tagged-union
// request/response protocol with a "type" discriminator field.
// encoding/json has no native tagged-union support, so InboundMessage and
// OutboundMessage implement MarshalJSON/UnmarshalJSON by hand against a
// flat wire struct.

// InboundKind discriminates the three request variants a client can send.
type InboundKind int

const (
	InboundPush InboundKind = iota
	InboundGet
	InboundPing
)

// InboundMessage is one request from a Connection's caller: Push, Get, or
// Ping. Exactly one of the payload fields is meaningful, selected by Kind.
type InboundMessage struct {
	Kind InboundKind
	Push PushRequest
	Get  GetRequest
	Ping PingRequest
}

type PushRequest struct {
	Key    Key
	Value  Value
	Action Action
}

type GetRequest struct {
	Key Key
	// Since is nil when the request omits seq, meaning "subscribe only,
	// no Init reply"; a present seq (including 0) always gets an Init
	// reply.
	Since *SequenceNumber
}

type PingRequest struct {
	Nonce *uint64
}

// OutboundKind discriminates the five response/event variants a
// Connection's callback can receive.
type OutboundKind int

const (
	OutboundPush OutboundKind = iota
	OutboundInit
	OutboundStreamSize
	OutboundPong
	OutboundError
)

// OutboundMessage is one message delivered to a Connection's callback.
type OutboundMessage struct {
	Kind OutboundKind

	// Push, Init, StreamSize share the Key field; populated per Kind.
	Key  Key
	Data []SequenceValue // Init
	Size int             // StreamSize
	Seq  SequenceNumber  // Push
	Value Value          // Push

	Nonce *uint64 // Pong

	Message string // Error
}

func OutboundPushMsg(key Key, value Value, seq SequenceNumber) OutboundMessage {
	return OutboundMessage{Kind: OutboundPush, Key: key, Value: value, Seq: seq}
}

func OutboundInitMsg(key Key, data []SequenceValue) OutboundMessage {
	if data == nil {
		data = []SequenceValue{}
	}
	return OutboundMessage{Kind: OutboundInit, Key: key, Data: data}
}

func OutboundStreamSizeMsg(key Key, size int) OutboundMessage {
	return OutboundMessage{Kind: OutboundStreamSize, Key: key, Size: size}
}

func OutboundPongMsg(nonce *uint64) OutboundMessage {
	return OutboundMessage{Kind: OutboundPong, Nonce: nonce}
}

func OutboundErrorMsg(message string) OutboundMessage {
	return OutboundMessage{Kind: OutboundError, Message: message}
}

// --- wire encoding ---

type wireAction struct {
	Type string         `json:"type"`
	Seq  SequenceNumber `json:"seq,omitempty"`
}

type wireSequenceValue struct {
	Value Value          `json:"value"`
	Seq   SequenceNumber `json:"seq"`
}

type wireInbound struct {
	Type   string          `json:"type"`
	Key    Key             `json:"key,omitempty"`
	Value  Value           `json:"value,omitempty"`
	Action *wireAction     `json:"action,omitempty"`
	Seq    *SequenceNumber `json:"seq,omitempty"`
	Nonce  *uint64         `json:"nonce,omitempty"`
}

func (m InboundMessage) MarshalJSON() ([]byte, error) {
	w := wireInbound{}
	switch m.Kind {
	case InboundPush:
		w.Type = "push"
		w.Key = m.Push.Key
		w.Value = m.Push.Value
		a, err := actionToWire(m.Push.Action)
		if err != nil {
			return nil, err
		}
		w.Action = a
	case InboundGet:
		w.Type = "get"
		w.Key = m.Get.Key
		w.Seq = m.Get.Since
	case InboundPing:
		w.Type = "ping"
		w.Nonce = m.Ping.Nonce
	default:
		return nil, fmt.Errorf("room: unknown inbound kind %d", m.Kind)
	}
	return json.Marshal(w)
}

func (m *InboundMessage) UnmarshalJSON(data []byte) error {
	var w wireInbound
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "push":
		if w.Action == nil {
			return fmt.Errorf("room: push message missing action")
		}
		action, err := wireToAction(*w.Action)
		if err != nil {
			return err
		}
		*m = InboundMessage{Kind: InboundPush, Push: PushRequest{Key: w.Key, Value: w.Value, Action: action}}
	case "get":
		*m = InboundMessage{Kind: InboundGet, Get: GetRequest{Key: w.Key, Since: w.Seq}}
	case "ping":
		*m = InboundMessage{Kind: InboundPing, Ping: PingRequest{Nonce: w.Nonce}}
	default:
		return fmt.Errorf("room: unknown message type %q", w.Type)
	}
	return nil
}

func actionToWire(a Action) (*wireAction, error) {
	switch a.Kind {
	case ActionRelay:
		return &wireAction{Type: "relay"}, nil
	case ActionAppend:
		return &wireAction{Type: "append"}, nil
	case ActionReplace:
		return &wireAction{Type: "replace"}, nil
	case ActionCompact:
		return &wireAction{Type: "compact", Seq: a.Seq}, nil
	default:
		return nil, ErrUnknownAction
	}
}

func wireToAction(w wireAction) (Action, error) {
	switch w.Type {
	case "relay":
		return Relay(), nil
	case "append":
		return Append(), nil
	case "replace":
		return Replace(), nil
	case "compact":
		return CompactAt(w.Seq), nil
	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, w.Type)
	}
}

type wireOutbound struct {
	Type    string              `json:"type"`
	Key     Key                 `json:"key,omitempty"`
	Value   Value               `json:"value,omitempty"`
	Seq     SequenceNumber      `json:"seq,omitempty"`
	Data    []wireSequenceValue `json:"data,omitempty"`
	Size    int                 `json:"size,omitempty"`
	Nonce   *uint64             `json:"nonce,omitempty"`
	Message string              `json:"message,omitempty"`
}

func (m OutboundMessage) MarshalJSON() ([]byte, error) {
	w := wireOutbound{}
	switch m.Kind {
	case OutboundPush:
		w.Type = "push"
		w.Key = m.Key
		w.Value = m.Value
		w.Seq = m.Seq
	case OutboundInit:
		data := make([]wireSequenceValue, len(m.Data))
		for i, sv := range m.Data {
			data[i] = wireSequenceValue{Value: sv.Value, Seq: sv.Seq}
		}
		// wireOutbound.Data is omitempty, which would drop an empty list;
		// Init always carries "data", as [] when the log is empty.
		return json.Marshal(struct {
			Type string              `json:"type"`
			Key  Key                 `json:"key,omitempty"`
			Data []wireSequenceValue `json:"data"`
		}{Type: "init", Key: m.Key, Data: data})
	case OutboundStreamSize:
		w.Type = "stream_size"
		w.Key = m.Key
		w.Size = m.Size
	case OutboundPong:
		w.Type = "pong"
		w.Nonce = m.Nonce
	case OutboundError:
		w.Type = "error"
		w.Message = m.Message
	default:
		return nil, fmt.Errorf("room: unknown outbound kind %d", m.Kind)
	}
	return json.Marshal(w)
}

func (m *OutboundMessage) UnmarshalJSON(data []byte) error {
	var w wireOutbound
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "push":
		*m = OutboundMessage{Kind: OutboundPush, Key: w.Key, Value: w.Value, Seq: w.Seq}
	case "init":
		sv := make([]SequenceValue, len(w.Data))
		for i, d := range w.Data {
			sv[i] = SequenceValue{Value: d.Value, Seq: d.Seq}
		}
		*m = OutboundMessage{Kind: OutboundInit, Key: w.Key, Data: sv}
	case "stream_size":
		*m = OutboundMessage{Kind: OutboundStreamSize, Key: w.Key, Size: w.Size}
	case "pong":
		*m = OutboundMessage{Kind: OutboundPong, Nonce: w.Nonce}
	case "error":
		*m = OutboundMessage{Kind: OutboundError, Message: w.Message}
	default:
		return fmt.Errorf("room: unknown message type %q", w.Type)
	}
	return nil
}
