package event

import (
	"encoding/json"
	"fmt"

	"github.com/ahassany/sts/fingerprint"
)

// Encode renders e as the JSON object described by spec.md §4.1: common
// envelope fields (class, label, event_time, logical_round,
// dependent_labels, fingerprint) plus whatever class-specific fields the
// concrete type carries.
func Encode(e Event) ([]byte, error) {
	m := map[string]interface{}{
		"class":         e.Class(),
		"label":         e.Label(),
		"event_time":    [2]int64{e.EventTime().Secs, e.EventTime().Usecs},
		"logical_round": e.LogicalRound(),
		"fingerprint":   e.Fingerprint().Tuple(),
	}
	if dl := e.DependentLabels(); len(dl) > 0 {
		m["dependent_labels"] = dl
	}
	m["prunable"] = e.Prunable()

	if ie, ok := e.(InternalEvent); ok {
		m["timeout_disallowed"] = ie.TimeoutDisallowed()
	}

	addFields(m, e)

	return json.Marshal(m)
}

// addFields appends the class-specific fields for e onto m.
func addFields(m map[string]interface{}, e Event) {
	switch v := e.(type) {
	case *SwitchFailure:
		m["dpid"] = v.DPID
	case *SwitchRecovery:
		m["dpid"] = v.DPID
	case *LinkFailure:
		m["start_dpid"], m["start_port_no"], m["end_dpid"], m["end_port_no"] = v.StartDPID, v.StartPortNo, v.EndDPID, v.EndPortNo
	case *LinkRecovery:
		m["start_dpid"], m["start_port_no"], m["end_dpid"], m["end_port_no"] = v.StartDPID, v.StartPortNo, v.EndDPID, v.EndPortNo
	case *ControllerFailure:
		m["controller_id"] = v.ControllerID
	case *ControllerRecovery:
		m["controller_id"] = v.ControllerID
	case *HostMigration:
		m["old_dpid"], m["old_port_no"] = v.OldDPID, v.OldPortNo
		m["new_dpid"], m["new_port_no"] = v.NewDPID, v.NewPortNo
		m["host_id"], m["interface"] = v.HostID, v.Interface
	case *TrafficInjection:
		m["host_id"] = v.HostID
		m["packet"] = v.Packet
	case *WaitTime:
		m["wait_time"] = v.Seconds
	case *CheckInvariants:
		m["invariant_name"] = v.CheckName
	case *ControlChannelBlock:
		m["dpid"], m["controller_id"] = v.DPID, v.ControllerID
	case *ControlChannelUnblock:
		m["dpid"], m["controller_id"] = v.DPID, v.ControllerID
	case *DataplaneDrop:
		m["dp_fingerprint"], m["dpid"], m["port_no"], m["passive"] = v.DPFP.Tuple(), v.DPID, v.PortNo, v.Passive
	case *BlockControllerPair:
		m["cid1"], m["cid2"] = v.CID1, v.CID2
	case *UnblockControllerPair:
		m["cid1"], m["cid2"] = v.CID1, v.CID2
	case *LinkDiscovery:
		m["controller_id"], m["link_attrs"] = v.ControllerID, v.LinkAttrs
	case *PingEvent:
		m["src_host_id"], m["dst_host_id"] = v.SrcHostID, v.DstHostID
	case *AddIntent:
		m["request_type"] = v.RequestType
		m["cid"], m["intent_id"] = v.ControllerID, v.IntentID
		m["src_dpid"], m["dst_dpid"] = v.SrcDPID, v.DstDPID
		m["src_port"], m["dst_port"] = v.SrcPort, v.DstPort
		m["src_mac"], m["dst_mac"] = v.SrcMAC, v.DstMAC
		m["src_host_id"], m["src_iface"] = v.SrcHostID, v.SrcIface
		m["dst_host_id"], m["dst_iface"] = v.DstHostID, v.DstIface
		m["static_path"] = v.StaticPath
		m["intent_type"], m["intent_ip"] = v.IntentType, v.IntentIP
		m["intent_port"], m["intent_url"] = v.IntentPort, v.IntentURL
	case *RemoveIntent:
		m["request_type"] = v.RequestType
		m["cid"], m["intent_id"] = v.ControllerID, v.IntentID
		m["intent_ip"], m["intent_port"], m["intent_url"] = v.IntentIP, v.IntentPort, v.IntentURL
	case *ControlMessageSend:
		m["of_fingerprint"], m["dpid"], m["controller_id"] = v.OFFP.Tuple(), v.DPID, v.ControllerID
	case *ControlMessageReceive:
		m["of_fingerprint"], m["dpid"], m["controller_id"] = v.OFFP.Tuple(), v.DPID, v.ControllerID
	case *ProcessFlowMod:
		m["of_fingerprint"], m["dpid"], m["controller_id"] = v.OFFP.Tuple(), v.DPID, v.ControllerID
	case *ControllerStateChange:
		m["inner_fingerprint"], m["controller_id"] = v.InnerFP.Tuple(), v.ControllerID
	case *DeterministicValue:
		m["inner_fingerprint"], m["controller_id"], m["value"] = v.InnerFP.Tuple(), v.ControllerID, v.Value
	case *DataplanePermit:
		m["dp_fingerprint"], m["dpid"], m["port_no"], m["passive"] = v.DPFP.Tuple(), v.DPID, v.PortNo, v.Passive
	case *InvariantViolation:
		m["violations"], m["persistent"] = v.Violations, v.Persistent
	case *ConnectToControllers, *NOPInput:
		// No class-specific fields.
	}
}

func assertFields(m map[string]interface{}, fields ...string) error {
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrMalformedEvent, f)
		}
	}
	return nil
}

func getString(m map[string]interface{}, k string) string {
	s, _ := m[k].(string)
	return s
}

func getBool(m map[string]interface{}, k string, def bool) bool {
	if b, ok := m[k].(bool); ok {
		return b
	}
	return def
}

func getFloat(m map[string]interface{}, k string) float64 {
	switch v := m[k].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func getUint64(m map[string]interface{}, k string) uint64 { return uint64(getFloat(m, k)) }
func getUint32(m map[string]interface{}, k string) uint32 { return uint32(getFloat(m, k)) }
func getInt(m map[string]interface{}, k string) int        { return int(getFloat(m, k)) }

func getStringSlice(m map[string]interface{}, k string) []string {
	raw, ok := m[k].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}

func getFingerprint(m map[string]interface{}, k string) (fingerprint.Fingerprint, error) {
	raw, ok := m[k].([]interface{})
	if !ok {
		return fingerprint.Fingerprint{}, fmt.Errorf("%w: missing field %q", ErrMalformedEvent, k)
	}
	fp, err := fingerprint.FromTuple(raw)
	if err != nil {
		return fingerprint.Fingerprint{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return fp, nil
}

func getPacket(m map[string]interface{}, k string) (fingerprint.Packet, error) {
	var pkt fingerprint.Packet
	raw, ok := m[k]
	if !ok {
		return pkt, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return pkt, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := json.Unmarshal(encoded, &pkt); err != nil {
		return pkt, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return pkt, nil
}

func floatField(raw interface{}) float64 {
	f, _ := raw.(float64)
	return f
}

func extractLabelTime(m map[string]interface{}) (string, EventTime, int, []string, error) {
	if err := assertFields(m, "label", "event_time", "logical_round"); err != nil {
		return "", EventTime{}, 0, nil, err
	}
	label := getString(m, "label")
	var t EventTime
	if pair, ok := m["event_time"].([]interface{}); ok && len(pair) == 2 {
		t.Secs = int64(floatField(pair[0]))
		t.Usecs = int64(floatField(pair[1]))
	}
	round := getInt(m, "logical_round")
	dependent := getStringSlice(m, "dependent_labels")
	return label, t, round, dependent, nil
}

// Decode parses data into the concrete Event named by its "class" field,
// per spec.md §4.1. Missing required fields produce an error wrapping
// ErrMalformedEvent naming the field. Unknown fields are ignored.
func Decode(data []byte) (Event, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := assertFields(m, "class"); err != nil {
		return nil, err
	}
	class := getString(m, "class")

	label, t, round, dependent, err := extractLabelTime(m)
	if err != nil {
		return nil, err
	}
	prunable := getBool(m, "prunable", defaultPrunable(class))
	timeoutDisallowed := getBool(m, "timeout_disallowed", false)

	base := func() Base { return NewBase(label, t, round, prunable, dependent) }

	switch class {
	case "SwitchFailure":
		if err := assertFields(m, "dpid"); err != nil {
			return nil, err
		}
		return &SwitchFailure{Base: base(), DPID: getUint64(m, "dpid")}, nil
	case "SwitchRecovery":
		if err := assertFields(m, "dpid"); err != nil {
			return nil, err
		}
		return &SwitchRecovery{Base: base(), DPID: getUint64(m, "dpid")}, nil
	case "LinkFailure":
		if err := assertFields(m, "start_dpid", "start_port_no", "end_dpid", "end_port_no"); err != nil {
			return nil, err
		}
		return &LinkFailure{Base: base(), StartDPID: getUint64(m, "start_dpid"), StartPortNo: getUint32(m, "start_port_no"),
			EndDPID: getUint64(m, "end_dpid"), EndPortNo: getUint32(m, "end_port_no")}, nil
	case "LinkRecovery":
		if err := assertFields(m, "start_dpid", "start_port_no", "end_dpid", "end_port_no"); err != nil {
			return nil, err
		}
		return &LinkRecovery{Base: base(), StartDPID: getUint64(m, "start_dpid"), StartPortNo: getUint32(m, "start_port_no"),
			EndDPID: getUint64(m, "end_dpid"), EndPortNo: getUint32(m, "end_port_no")}, nil
	case "ControllerFailure":
		if err := assertFields(m, "controller_id"); err != nil {
			return nil, err
		}
		return &ControllerFailure{Base: base(), ControllerID: getString(m, "controller_id")}, nil
	case "ControllerRecovery":
		if err := assertFields(m, "controller_id"); err != nil {
			return nil, err
		}
		return &ControllerRecovery{Base: base(), ControllerID: getString(m, "controller_id")}, nil
	case "HostMigration":
		if err := assertFields(m, "old_dpid", "old_port_no", "new_dpid", "new_port_no", "host_id"); err != nil {
			return nil, err
		}
		return &HostMigration{Base: base(), OldDPID: getUint64(m, "old_dpid"), OldPortNo: getUint32(m, "old_port_no"),
			NewDPID: getUint64(m, "new_dpid"), NewPortNo: getUint32(m, "new_port_no"),
			HostID: getString(m, "host_id"), Interface: getString(m, "interface")}, nil
	case "TrafficInjection":
		if err := assertFields(m, "host_id"); err != nil {
			return nil, err
		}
		pkt, err := getPacket(m, "packet")
		if err != nil {
			return nil, err
		}
		return &TrafficInjection{Base: base(), HostID: getString(m, "host_id"), Packet: pkt}, nil
	case "WaitTime":
		if err := assertFields(m, "wait_time"); err != nil {
			return nil, err
		}
		return &WaitTime{Base: base(), Seconds: getFloat(m, "wait_time")}, nil
	case "CheckInvariants":
		name := getString(m, "invariant_name")
		if name == "" {
			name = "connectivity"
		}
		return &CheckInvariants{Base: base(), CheckName: name}, nil
	case "ControlChannelBlock":
		if err := assertFields(m, "dpid", "controller_id"); err != nil {
			return nil, err
		}
		return &ControlChannelBlock{Base: base(), DPID: getUint64(m, "dpid"), ControllerID: getString(m, "controller_id")}, nil
	case "ControlChannelUnblock":
		if err := assertFields(m, "dpid", "controller_id"); err != nil {
			return nil, err
		}
		return &ControlChannelUnblock{Base: base(), DPID: getUint64(m, "dpid"), ControllerID: getString(m, "controller_id")}, nil
	case "DataplaneDrop":
		if err := assertFields(m, "dpid", "port_no"); err != nil {
			return nil, err
		}
		dpfp, err := getFingerprint(m, "dp_fingerprint")
		if err != nil {
			return nil, err
		}
		return &DataplaneDrop{Base: base(), DPFP: dpfp, DPID: getUint64(m, "dpid"), PortNo: getUint32(m, "port_no"),
			Passive: getBool(m, "passive", true)}, nil
	case "BlockControllerPair":
		if err := assertFields(m, "cid1", "cid2"); err != nil {
			return nil, err
		}
		return &BlockControllerPair{Base: base(), CID1: getString(m, "cid1"), CID2: getString(m, "cid2")}, nil
	case "UnblockControllerPair":
		if err := assertFields(m, "cid1", "cid2"); err != nil {
			return nil, err
		}
		return &UnblockControllerPair{Base: base(), CID1: getString(m, "cid1"), CID2: getString(m, "cid2")}, nil
	case "ConnectToControllers":
		return &ConnectToControllers{Base: base()}, nil
	case "LinkDiscovery":
		if err := assertFields(m, "controller_id", "link_attrs"); err != nil {
			return nil, err
		}
		return &LinkDiscovery{Base: base(), ControllerID: getString(m, "controller_id"), LinkAttrs: getStringSlice(m, "link_attrs")}, nil
	case "NOPInput":
		return &NOPInput{Base: base()}, nil
	case "AddIntent":
		if err := assertFields(m, "cid", "intent_id", "src_dpid", "dst_dpid", "src_port", "dst_port",
			"src_mac", "dst_mac", "intent_type", "intent_ip", "intent_port", "intent_url"); err != nil {
			return nil, err
		}
		return &AddIntent{
			PolicyChange: PolicyChange{Base: base(), RequestType: "AddIntent"},
			ControllerID: getString(m, "cid"), IntentID: getString(m, "intent_id"),
			SrcDPID: getUint64(m, "src_dpid"), DstDPID: getUint64(m, "dst_dpid"),
			SrcPort: getUint32(m, "src_port"), DstPort: getUint32(m, "dst_port"),
			SrcMAC: getString(m, "src_mac"), DstMAC: getString(m, "dst_mac"),
			SrcHostID: getString(m, "src_host_id"), SrcIface: getString(m, "src_iface"),
			DstHostID: getString(m, "dst_host_id"), DstIface: getString(m, "dst_iface"),
			StaticPath: getBool(m, "static_path", false),
			IntentType: getString(m, "intent_type"), IntentIP: getString(m, "intent_ip"),
			IntentPort: getInt(m, "intent_port"), IntentURL: getString(m, "intent_url"),
		}, nil
	case "RemoveIntent":
		if err := assertFields(m, "cid", "intent_id", "intent_ip", "intent_port", "intent_url"); err != nil {
			return nil, err
		}
		return &RemoveIntent{
			PolicyChange: PolicyChange{Base: base(), RequestType: "RemoveIntent"},
			ControllerID: getString(m, "cid"), IntentID: getString(m, "intent_id"),
			IntentIP: getString(m, "intent_ip"), IntentPort: getInt(m, "intent_port"), IntentURL: getString(m, "intent_url"),
		}, nil
	case "PingEvent":
		if err := assertFields(m, "src_host_id", "dst_host_id"); err != nil {
			return nil, err
		}
		return &PingEvent{Base: base(), SrcHostID: getString(m, "src_host_id"), DstHostID: getString(m, "dst_host_id")}, nil
	case "ControlMessageSend":
		if err := assertFields(m, "dpid", "controller_id"); err != nil {
			return nil, err
		}
		offp, err := getFingerprint(m, "of_fingerprint")
		if err != nil {
			return nil, err
		}
		return &ControlMessageSend{controlMessageBase{Base: base(), OFFP: offp, DPID: getUint64(m, "dpid"),
			ControllerID: getString(m, "controller_id"), timeoutDisallowed: timeoutDisallowed}}, nil
	case "ControlMessageReceive":
		if err := assertFields(m, "dpid", "controller_id"); err != nil {
			return nil, err
		}
		offp, err := getFingerprint(m, "of_fingerprint")
		if err != nil {
			return nil, err
		}
		return &ControlMessageReceive{controlMessageBase{Base: base(), OFFP: offp, DPID: getUint64(m, "dpid"),
			ControllerID: getString(m, "controller_id"), timeoutDisallowed: timeoutDisallowed}}, nil
	case "ProcessFlowMod":
		if err := assertFields(m, "dpid", "controller_id"); err != nil {
			return nil, err
		}
		offp, err := getFingerprint(m, "of_fingerprint")
		if err != nil {
			return nil, err
		}
		return &ProcessFlowMod{controlMessageBase{Base: base(), OFFP: offp, DPID: getUint64(m, "dpid"),
			ControllerID: getString(m, "controller_id"), timeoutDisallowed: timeoutDisallowed}}, nil
	case "ControllerStateChange":
		if err := assertFields(m, "controller_id"); err != nil {
			return nil, err
		}
		innerFP, err := getFingerprint(m, "inner_fingerprint")
		if err != nil {
			return nil, err
		}
		return &ControllerStateChange{Base: base(), InnerFP: innerFP, ControllerID: getString(m, "controller_id"), timeoutDisallowed: timeoutDisallowed}, nil
	case "DeterministicValue":
		if err := assertFields(m, "controller_id"); err != nil {
			return nil, err
		}
		innerFP, err := getFingerprint(m, "inner_fingerprint")
		if err != nil {
			return nil, err
		}
		return &DeterministicValue{Base: base(), InnerFP: innerFP, ControllerID: getString(m, "controller_id"),
			Value: m["value"], timeoutDisallowed: timeoutDisallowed}, nil
	case "DataplanePermit":
		if err := assertFields(m, "dpid", "port_no"); err != nil {
			return nil, err
		}
		dpfp, err := getFingerprint(m, "dp_fingerprint")
		if err != nil {
			return nil, err
		}
		return &DataplanePermit{Base: base(), DPFP: dpfp, DPID: getUint64(m, "dpid"), PortNo: getUint32(m, "port_no"),
			Passive: getBool(m, "passive", true), timeoutDisallowed: timeoutDisallowed}, nil
	case "InvariantViolation":
		return &InvariantViolation{Base: base(), Violations: getStringSlice(m, "violations"),
			Persistent: getBool(m, "persistent", true)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown class %q", ErrMalformedEvent, class)
	}
}

// defaultPrunable gives the class default spec.md §4.1 requires when a
// decoded trace omits "prunable" (backward compatibility with older
// traces).
func defaultPrunable(class string) bool {
	switch class {
	case "WaitTime", "CheckInvariants", "NOPInput", "ConnectToControllers":
		return false
	default:
		return true
	}
}
