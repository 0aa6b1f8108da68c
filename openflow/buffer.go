// Package openflow implements the control-plane message buffer described in
// spec.md §4.2: the single chokepoint on every switch<->controller
// connection that holds every intercepted OpenFlow message until an
// explicit schedule decision releases it.
//
// The FIFO bookkeeping here is grounded on the teacher's
// ovsdb/client.go Client/rpc request-response accounting, repurposed to key
// queued messages by fingerprint instead of by JSON-RPC id.
package openflow

import (
	"fmt"
	"sync"

	"github.com/ahassany/sts/fingerprint"
)

// connKey identifies one switch<->controller connection.
type connKey struct {
	DPID uint64
	CID  string
}

// A PendingSend identifies a specific queued switch->controller message.
type PendingSend struct {
	DPID         uint64
	ControllerID string
	Fingerprint  fingerprint.Fingerprint
}

// A PendingReceive identifies a specific queued controller->switch message.
type PendingReceive struct {
	DPID         uint64
	ControllerID string
	Fingerprint  fingerprint.Fingerprint
}

// queue is a strict FIFO of fingerprints awaiting release.
type queue struct {
	items []fingerprint.Fingerprint
}

func (q *queue) push(fp fingerprint.Fingerprint) {
	q.items = append(q.items, fp)
}

// headMatches reports whether fp sits at the front of the queue.
func (q *queue) headMatches(fp fingerprint.Fingerprint) bool {
	return len(q.items) > 0 && q.items[0].Equal(fp)
}

// pop removes and returns the head of the queue.
func (q *queue) pop() (fingerprint.Fingerprint, bool) {
	if len(q.items) == 0 {
		return fingerprint.Fingerprint{}, false
	}
	fp := q.items[0]
	q.items = q.items[1:]
	return fp, true
}

// A Buffer is the OpenFlow god-scheduler: for each (dpid, controller_id)
// pair it maintains two ordered queues (pending sends, pending receives)
// keyed by OFFingerprint, plus a per-switch ProcessFlowMod gate and a
// statically known whitelist of always-pass messages.
type Buffer struct {
	mu sync.Mutex

	sends    map[connKey]*queue
	receives map[connKey]*queue
	flowMods map[connKey]*queue // per-switch ProcessFlowMod gate, keyed by (dpid, controller_id)

	blocked map[connKey]bool

	whitelist map[string]bool // fingerprint class tags that bypass gating

	onSend    func(dpid uint64, cid string, fp fingerprint.Fingerprint)
	onReceive func(dpid uint64, cid string, fp fingerprint.Fingerprint)
}

// New returns an empty Buffer. The whitelist contains the classes that
// always bypass gating (hello, echo_reply, …) per spec.md §4.2; pass
// additional classes via WithWhitelist.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		sends:     make(map[connKey]*queue),
		receives:  make(map[connKey]*queue),
		flowMods:  make(map[connKey]*queue),
		blocked:   make(map[connKey]bool),
		whitelist: defaultWhitelist(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Option configures a Buffer at construction time.
type Option func(*Buffer)

// WithWhitelist adds additional OpenFlow message classes (see
// fingerprint.OFType) to the set that always bypasses gating.
func WithWhitelist(classes ...string) Option {
	return func(b *Buffer) {
		for _, c := range classes {
			b.whitelist[c] = true
		}
	}
}

// OnSendObserved installs a callback fired by ObserveSend after the message
// is enqueued, mirroring spec.md §4.2's "emit internal event" effect. The
// replayer wires this to push a ControlMessageSend observation.
func OnSendObserved(f func(dpid uint64, cid string, fp fingerprint.Fingerprint)) Option {
	return func(b *Buffer) { b.onSend = f }
}

// OnReceiveObserved installs the receive-side counterpart of OnSendObserved.
func OnReceiveObserved(f func(dpid uint64, cid string, fp fingerprint.Fingerprint)) Option {
	return func(b *Buffer) { b.onReceive = f }
}

func defaultWhitelist() map[string]bool {
	m := make(map[string]bool)
	for _, c := range whitelistClasses() {
		m[c] = true
	}
	return m
}

func messageType(fp fingerprint.Fingerprint) (string, bool) {
	payload := fp.Payload()
	if len(payload) == 0 {
		return "", false
	}
	t, ok := payload[0].(string)
	return t, ok
}

// InWhitelist reports whether fp's message type is a statically known
// always-pass member, per spec.md §4.2.
func (b *Buffer) InWhitelist(fp fingerprint.Fingerprint) bool {
	t, ok := messageType(fp)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.whitelist[t]
}

// ObserveSend enqueues a switch->controller message and notifies the
// installed OnSend callback, per spec.md §4.2.
func (b *Buffer) ObserveSend(dpid uint64, cid string, fp fingerprint.Fingerprint) {
	b.mu.Lock()
	key := connKey{dpid, cid}
	q, ok := b.sends[key]
	if !ok {
		q = &queue{}
		b.sends[key] = q
	}
	q.push(fp)
	cb := b.onSend
	b.mu.Unlock()

	if cb != nil {
		cb(dpid, cid, fp)
	}
}

// ObserveReceive enqueues a controller->switch message and notifies the
// installed OnReceive callback.
func (b *Buffer) ObserveReceive(dpid uint64, cid string, fp fingerprint.Fingerprint) {
	b.mu.Lock()
	key := connKey{dpid, cid}
	q, ok := b.receives[key]
	if !ok {
		q = &queue{}
		b.receives[key] = q
	}
	q.push(fp)
	cb := b.onReceive
	b.mu.Unlock()

	if cb != nil {
		cb(dpid, cid, fp)
	}
}

// DropSwitch discards every message currently queued for dpid, across all
// controller connections' send/receive queues and its ProcessFlowMod gate.
// Used when a secure-fail-mode switch crashes: SPEC_FULL.md §3's "secure
// switches drop everything" extends to buffered in-flight messages, not
// just future traffic.
func (b *Buffer) DropSwitch(dpid uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.sends {
		if k.DPID == dpid {
			delete(b.sends, k)
		}
	}
	for k := range b.receives {
		if k.DPID == dpid {
			delete(b.receives, k)
		}
	}
	for k := range b.flowMods {
		if k.DPID == dpid {
			delete(b.flowMods, k)
		}
	}
}

// ObserveFlowMod enqueues a flow_mod onto the per-switch ProcessFlowMod
// gate, a bounded-to-one-switch analogue of ObserveReceive per spec.md
// §4.2's "separate ProcessFlowMod gate".
func (b *Buffer) ObserveFlowMod(dpid uint64, cid string, fp fingerprint.Fingerprint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := connKey{dpid, cid}
	q, ok := b.flowMods[key]
	if !ok {
		q = &queue{}
		b.flowMods[key] = q
	}
	q.push(fp)
}

// MessageSendWaiting reports whether a message with p's exact fingerprint
// sits at the head of the relevant send queue. A blocked connection never
// reports waiting, per spec.md §4.2's "while blocked... no schedule call
// releases traffic": the caller sees this exactly like no message having
// arrived yet, and keeps polling until Unblock.
func (b *Buffer) MessageSendWaiting(p PendingSend) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := connKey{p.DPID, p.ControllerID}
	if b.blocked[key] {
		return false
	}
	q, ok := b.sends[key]
	return ok && q.headMatches(p.Fingerprint)
}

// MessageReceiptWaiting is the receive-side counterpart of
// MessageSendWaiting.
func (b *Buffer) MessageReceiptWaiting(p PendingReceive) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := connKey{p.DPID, p.ControllerID}
	if b.blocked[key] {
		return false
	}
	q, ok := b.receives[key]
	return ok && q.headMatches(p.Fingerprint)
}

// FlowModWaiting reports whether a flow_mod with fp's exact fingerprint sits
// at the head of (dpid, cid)'s ProcessFlowMod gate. Blocked exactly like
// MessageSendWaiting/MessageReceiptWaiting.
func (b *Buffer) FlowModWaiting(dpid uint64, cid string, fp fingerprint.Fingerprint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := connKey{dpid, cid}
	if b.blocked[key] {
		return false
	}
	q, ok := b.flowMods[key]
	return ok && q.headMatches(fp)
}

// ScheduleSend releases the head of the send queue for p's connection. It
// must only be called while MessageSendWaiting(p) is true, matching
// spec.md §4.2's precondition; calling it otherwise is a fatal internal
// error (spec.md §7, "scheduling an already-released message").
func (b *Buffer) ScheduleSend(p PendingSend) error {
	return b.schedule(b.sends, connKey{p.DPID, p.ControllerID}, p.Fingerprint)
}

// ScheduleReceive is the receive-side counterpart of ScheduleSend.
func (b *Buffer) ScheduleReceive(p PendingReceive) error {
	return b.schedule(b.receives, connKey{p.DPID, p.ControllerID}, p.Fingerprint)
}

// ScheduleFlowMod releases the head of (dpid, cid)'s ProcessFlowMod gate.
// It must only be called while FlowModWaiting(dpid, cid, fp) is true, which
// is itself false while the connection is blocked; calling it on a blocked
// connection anyway is a precondition violation, same as calling it when fp
// isn't at the head of the queue.
func (b *Buffer) ScheduleFlowMod(dpid uint64, cid string, fp fingerprint.Fingerprint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := connKey{dpid, cid}
	if b.blocked[key] {
		return fmt.Errorf("openflow: schedule called for flow_mod on blocked connection dpid %d cid %s: %s", dpid, cid, fp)
	}
	q, ok := b.flowMods[key]
	if !ok || !q.headMatches(fp) {
		return fmt.Errorf("openflow: schedule called for flow_mod not at head of dpid %d's gate: %s", dpid, fp)
	}
	_, _ = q.pop()
	return nil
}

func (b *Buffer) schedule(m map[connKey]*queue, key connKey, fp fingerprint.Fingerprint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blocked[key] {
		return fmt.Errorf("openflow: schedule called for message on blocked connection %+v: %s", key, fp)
	}
	q, ok := m[key]
	if !ok || !q.headMatches(fp) {
		return fmt.Errorf("openflow: schedule called for message not at head of queue %+v: %s", key, fp)
	}
	_, _ = q.pop()
	return nil
}

// Block gates a connection so that Schedule calls on it have no effect
// until Unblock is called; observations continue to be accepted. Block is
// idempotent on an already-blocked connection, per spec.md §9 Open
// Question (b).
func (b *Buffer) Block(dpid uint64, cid string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[connKey{dpid, cid}] = true
	return nil
}

// Unblock releases a previously blocked connection. Unblock on a connection
// that was never blocked is also treated as a no-op success.
func (b *Buffer) Unblock(dpid uint64, cid string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, connKey{dpid, cid})
	return nil
}

// IsBlocked reports whether dpid/cid's connection is currently gated.
func (b *Buffer) IsBlocked(dpid uint64, cid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocked[connKey{dpid, cid}]
}
