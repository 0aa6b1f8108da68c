// Package controllersync implements the control-plane synchronization
// channel described in spec.md §4.4: a side-band RPC connection the replay
// core uses to ask a controller process about state changes and
// deterministic values in lockstep with the replayed event stream.
//
// The request/response framing is grounded on the teacher's
// ovsdb/internal/jsonrpc Conn type: a single mutex-guarded encoder/decoder
// pair over an io.ReadWriteCloser, generalized from OVSDB's method-call
// shape to the four message kinds spec.md §4.4 names explicitly.
package controllersync

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// A MessageKind discriminates the four wire message shapes the sync
// channel exchanges, per spec.md §4.4.
type MessageKind string

const (
	// KindStateChangePending is sent controller->core: "I am about to make
	// this state change, block until acknowledged."
	KindStateChangePending MessageKind = "state_change_pending"
	// KindAckPendingStateChange is sent core->controller: "proceed."
	KindAckPendingStateChange MessageKind = "ack_pending_state_change"
	// KindPendingDeterministicValueRequest is sent controller->core: "I need
	// a value for this nondeterministic decision point."
	KindPendingDeterministicValueRequest MessageKind = "pending_deterministic_value_request"
	// KindSendDeterministicValue is sent core->controller carrying the
	// resolved value.
	KindSendDeterministicValue MessageKind = "send_deterministic_value"
)

// A FlowStats is the deterministic-value payload shape for flow counter
// queries, grounded on the teacher's ovs/flowstats.go NXST_AGGREGATE reply
// (packet/byte counters without the rest of ovs-ofctl's human-readable
// dump format).
type FlowStats struct {
	PacketCount uint64 `json:"packet_count"`
	ByteCount   uint64 `json:"byte_count"`
}

// A Message is the wire envelope for every sync-channel exchange. Payload
// is kept as json.RawMessage so decode can dispatch on Kind before
// unmarshaling the kind-specific body.
type Message struct {
	SessionID string          `json:"session_id"`
	Kind      MessageKind     `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// A StateChangePending is the payload of a KindStateChangePending message:
// the controller names the state change it is about to perform so the
// replay core can fingerprint it as a ControllerStateChange internal event.
type StateChangePending struct {
	ControllerID string      `json:"controller_id"`
	Description  string      `json:"description"`
	Value        interface{} `json:"value,omitempty"`
}

// A DeterministicValueRequest is the payload of a
// KindPendingDeterministicValueRequest message.
type DeterministicValueRequest struct {
	ControllerID string `json:"controller_id"`
	RequestType  string `json:"request_type"`
}

// A DeterministicValueResponse is the payload of a
// KindSendDeterministicValue message.
type DeterministicValueResponse struct {
	Value interface{} `json:"value"`
}

// A Channel is one full-duplex JSON line connection to a controller
// process, mutex-guarded the same way the teacher's jsonrpc.Conn guards its
// encoder against interleaved concurrent writes.
type Channel struct {
	mu  sync.Mutex
	rw  io.ReadWriteCloser
	enc *json.Encoder
	dec *json.Decoder

	onStateChangePending func(sessionID string, p StateChangePending)
	onValueRequest       func(sessionID string, r DeterministicValueRequest)
}

// ChannelOption configures a Channel at construction time.
type ChannelOption func(*Channel)

// OnStateChangePending installs the handler invoked by Serve when a
// state_change_pending message arrives.
func OnStateChangePending(f func(sessionID string, p StateChangePending)) ChannelOption {
	return func(c *Channel) { c.onStateChangePending = f }
}

// OnDeterministicValueRequest installs the handler invoked by Serve when a
// pending_deterministic_value_request message arrives.
func OnDeterministicValueRequest(f func(sessionID string, r DeterministicValueRequest)) ChannelOption {
	return func(c *Channel) { c.onValueRequest = f }
}

// NewChannel wraps rw as a sync channel.
func NewChannel(rw io.ReadWriteCloser, opts ...ChannelOption) *Channel {
	c := &Channel{
		rw:  rw,
		enc: json.NewEncoder(rw),
		dec: json.NewDecoder(rw),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewSessionID returns a fresh session identifier for a StateChangePending
// or DeterministicValueRequest round trip, grounded on the teacher-pack's
// span-id idiom (bassosimone-nop's NewSpanID wrapping google/uuid).
func NewSessionID() string {
	return uuid.NewString()
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.rw.Close()
}

// send writes one framed message, holding the encoder lock for the
// duration of the write so concurrent goroutines never interleave partial
// JSON lines onto the wire.
func (c *Channel) send(kind MessageKind, sessionID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("controllersync: marshal %s payload: %w", kind, err)
	}
	msg := Message{SessionID: sessionID, Kind: kind, Payload: body}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(msg)
}

// AckPendingStateChange tells the controller it may proceed past a
// previously reported StateChangePending.
func (c *Channel) AckPendingStateChange(sessionID string) error {
	return c.send(KindAckPendingStateChange, sessionID, struct{}{})
}

// SendDeterministicValue answers a previously reported
// DeterministicValueRequest with value.
func (c *Channel) SendDeterministicValue(sessionID string, value interface{}) error {
	return c.send(KindSendDeterministicValue, sessionID, DeterministicValueResponse{Value: value})
}

// Serve reads framed messages until the connection closes or ctx-like
// cancellation happens via an io error, dispatching each to the installed
// handler. Serve is meant to run on its own goroutine; the replayer
// observes state changes and value requests through the callbacks rather
// than by polling.
func (c *Channel) Serve() error {
	for {
		var msg Message
		if err := c.dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("controllersync: decode: %w", err)
		}

		switch msg.Kind {
		case KindStateChangePending:
			var p StateChangePending
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return fmt.Errorf("controllersync: malformed state_change_pending: %w", err)
			}
			if c.onStateChangePending != nil {
				c.onStateChangePending(msg.SessionID, p)
			}
		case KindPendingDeterministicValueRequest:
			var r DeterministicValueRequest
			if err := json.Unmarshal(msg.Payload, &r); err != nil {
				return fmt.Errorf("controllersync: malformed pending_deterministic_value_request: %w", err)
			}
			if c.onValueRequest != nil {
				c.onValueRequest(msg.SessionID, r)
			}
		default:
			return fmt.Errorf("controllersync: unexpected message kind from controller: %s", msg.Kind)
		}
	}
}
