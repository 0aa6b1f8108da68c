package fingerprint

import (
	"fmt"
	"net"
)

// FrameType names the dataplane frame kind a Packet carries, mirroring the
// protocol tag that heads an ofproto/trace "Flow:" line in the teacher
// library (ovs/proto_trace.go's DataPathFlows.Protocol).
type FrameType string

// Recognised frame types.
const (
	FrameIPv4 FrameType = "ip"
	FrameIPv6 FrameType = "ipv6"
	FrameARP  FrameType = "arp"
	FrameLLDP FrameType = "lldp"
	FrameRaw  FrameType = "eth"
)

// A Packet is the minimal dataplane packet summary the simulator needs in
// order to fingerprint a TrafficInjection/DataplaneDrop/DataplanePermit
// event: frame type, source/destination MAC, and protocol-specific fields.
//
// Packet deliberately does not attempt to be a full frame parser; it is the
// canonical subset of fields spec.md §3 lists for DPFingerprint.
type Packet struct {
	Frame   FrameType
	SrcMAC  net.HardwareAddr
	DstMAC  net.HardwareAddr

	// IPv4/IPv6 5-tuple fields. Zero values when Frame is not ip/ipv6.
	SrcIP    net.IP
	DstIP    net.IP
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16

	// ARP fields. Zero values when Frame != arp.
	ARPSenderMAC net.HardwareAddr
	ARPSenderIP  net.IP
	ARPTargetMAC net.HardwareAddr
	ARPTargetIP  net.IP
}

// DPFingerprint computes the canonical dataplane fingerprint for pkt, per
// spec.md §3/§4.1: frame type, src/dst MAC, and protocol-specific fields.
//
// The payload is built as an explicit sequence in a fixed field order
// (never a map) so that two packets with identical fields yield Fingerprint
// values that are Equal.
func DPFingerprint(pkt Packet) Fingerprint {
	payload := []interface{}{
		string(pkt.Frame),
		macString(pkt.SrcMAC),
		macString(pkt.DstMAC),
	}

	switch pkt.Frame {
	case FrameIPv4, FrameIPv6:
		payload = append(payload,
			ipString(pkt.SrcIP),
			ipString(pkt.DstIP),
			pkt.Protocol,
			pkt.SrcPort,
			pkt.DstPort,
		)
	case FrameARP:
		payload = append(payload,
			macString(pkt.ARPSenderMAC),
			ipString(pkt.ARPSenderIP),
			macString(pkt.ARPTargetMAC),
			ipString(pkt.ARPTargetIP),
		)
	}

	return New("DPFingerprint", payload...)
}

func macString(mac net.HardwareAddr) string {
	if mac == nil {
		return ""
	}
	return mac.String()
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// String renders pkt for logs and test failures.
func (p Packet) String() string {
	switch p.Frame {
	case FrameIPv4, FrameIPv6:
		return fmt.Sprintf("%s %s>%s proto=%d %s:%d->%s:%d",
			p.Frame, macString(p.SrcMAC), macString(p.DstMAC),
			p.Protocol, ipString(p.SrcIP), p.SrcPort, ipString(p.DstIP), p.DstPort)
	case FrameARP:
		return fmt.Sprintf("arp %s(%s)->%s(%s)",
			ipString(p.ARPSenderIP), macString(p.ARPSenderMAC),
			ipString(p.ARPTargetIP), macString(p.ARPTargetMAC))
	default:
		return fmt.Sprintf("%s %s>%s", p.Frame, macString(p.SrcMAC), macString(p.DstMAC))
	}
}
