package fingerprint

import "fmt"

// An OFType is an OpenFlow message type, used as the discriminating class
// tag inside an OFFingerprint.
type OFType string

// Recognised OpenFlow message types. This is not an exhaustive OpenFlow 1.0+
// type list; it is the subset the replay core's whitelist and fingerprint
// logic need to name explicitly (spec.md §4.2/§6).
const (
	OFHello            OFType = "hello"
	OFEchoRequest      OFType = "echo_request"
	OFEchoReply        OFType = "echo_reply"
	OFFeaturesRequest  OFType = "features_request"
	OFFeaturesReply    OFType = "features_reply"
	OFPacketIn         OFType = "packet_in"
	OFPacketOut        OFType = "packet_out"
	OFFlowMod          OFType = "flow_mod"
	OFFlowRemoved      OFType = "flow_removed"
	OFPortStatus       OFType = "port_status"
	OFStatsRequest     OFType = "stats_request"
	OFStatsReply       OFType = "stats_reply"
	OFBarrierRequest   OFType = "barrier_request"
	OFBarrierReply     OFType = "barrier_reply"
	OFError            OFType = "error"
	OFSetConfig        OFType = "set_config"
)

// A FlowMod is the canonicalisable subset of an OpenFlow flow_mod message
// body: match criteria plus the instruction/action list. Cookie and xid are
// deliberately not part of this type, matching spec.md §3's requirement
// that OFFingerprint canonicalise "flow_mod with match fields but without
// cookies or xid".
//
// Match is expressed as field=value pairs the way 'ovs-ofctl' and
// 'ofproto/trace' render them (ovs/matchparser.go's parseMatch keys), which
// keeps the canonical form human-readable in logs.
type FlowMod struct {
	Table    uint8
	Priority uint16
	Match    map[string]string
	// Actions preserves wire order: unlike Match, action order is
	// functionally significant in OpenFlow (actions apply in sequence), so
	// it must not be sorted away during canonicalisation.
	Actions []string
}

// A Message is the generic canonicalisable OpenFlow message the buffer
// observes. Body is nil for message types that carry no canonicalisable
// payload (hello, echo_*, barrier_*, features_request).
type Message struct {
	Type OFType
	Body *FlowMod
}

// OFFingerprint computes the canonical control-plane fingerprint of msg per
// spec.md §3/§4.1: message type plus a canonicalised body. For flow_mod,
// match fields are sorted (order-independent: two messages with the same
// criteria in a different wire order must compare equal) while actions
// retain wire order.
func OFFingerprint(msg Message) Fingerprint {
	if msg.Body == nil {
		return New("OFFingerprint", string(msg.Type))
	}

	payload := []interface{}{string(msg.Type), msg.Body.Table, msg.Body.Priority}
	for _, k := range sortedKeys(msg.Body.Match) {
		payload = append(payload, fmt.Sprintf("%s=%s", k, msg.Body.Match[k]))
	}
	payload = append(payload, "|actions|")
	for _, a := range msg.Body.Actions {
		payload = append(payload, a)
	}

	return New("OFFingerprint", payload...)
}
