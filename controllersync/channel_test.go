package controllersync

import (
	"encoding/json"
	"io"
	"testing"
	"time"
)

// pipeConn adapts a net.Pipe-style pair of pipes into one
// io.ReadWriteCloser per side, since io.Pipe only gives one direction.
type pipeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipeConn) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeConn) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p pipeConn) Close() error {
	p.r.Close()
	return p.w.Close()
}

func newPipePair() (a, b pipeConn) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	a = pipeConn{r: r1, w: w2}
	b = pipeConn{r: r2, w: w1}
	return
}

func TestStateChangePendingRoundTrip(t *testing.T) {
	controllerSide, coreSide := newPipePair()

	received := make(chan StateChangePending, 1)
	core := NewChannel(coreSide, OnStateChangePending(func(sessionID string, p StateChangePending) {
		received <- p
	}))
	go core.Serve()

	controllerEnc := json.NewEncoder(controllerSide)
	sid := NewSessionID()
	payload, _ := json.Marshal(StateChangePending{ControllerID: "c1", Description: "install flow"})
	if err := controllerEnc.Encode(Message{SessionID: sid, Kind: KindStateChangePending, Payload: payload}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	select {
	case got := <-received:
		if got.ControllerID != "c1" || got.Description != "install flow" {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state_change_pending")
	}

	if err := core.AckPendingStateChange(sid); err != nil {
		t.Fatalf("AckPendingStateChange: %v", err)
	}

	var ack Message
	dec := json.NewDecoder(controllerSide)
	if err := dec.Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Kind != KindAckPendingStateChange || ack.SessionID != sid {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestDeterministicValueRoundTrip(t *testing.T) {
	controllerSide, coreSide := newPipePair()

	received := make(chan DeterministicValueRequest, 1)
	core := NewChannel(coreSide, OnDeterministicValueRequest(func(sessionID string, r DeterministicValueRequest) {
		received <- r
	}))
	go core.Serve()

	controllerEnc := json.NewEncoder(controllerSide)
	sid := NewSessionID()
	payload, _ := json.Marshal(DeterministicValueRequest{ControllerID: "c1", RequestType: "flow_stats"})
	if err := controllerEnc.Encode(Message{SessionID: sid, Kind: KindPendingDeterministicValueRequest, Payload: payload}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	select {
	case got := <-received:
		if got.RequestType != "flow_stats" {
			t.Fatalf("unexpected request: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value request")
	}

	stats := FlowStats{PacketCount: 10, ByteCount: 1500}
	if err := core.SendDeterministicValue(sid, stats); err != nil {
		t.Fatalf("SendDeterministicValue: %v", err)
	}

	var resp Message
	dec := json.NewDecoder(controllerSide)
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Kind != KindSendDeterministicValue {
		t.Fatalf("unexpected response kind: %s", resp.Kind)
	}
	var body DeterministicValueResponse
	if err := json.Unmarshal(resp.Payload, &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
}

func TestServeReturnsNilOnEOF(t *testing.T) {
	controllerSide, coreSide := newPipePair()
	core := NewChannel(coreSide)
	done := make(chan error, 1)
	go func() { done <- core.Serve() }()

	controllerSide.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on clean close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer closed")
	}
}
