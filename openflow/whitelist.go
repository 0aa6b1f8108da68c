package openflow

// whitelistClasses lists the OpenFlow message types that spec.md §4.2
// declares always bypass gating, regardless of scheduler state: connection
// keepalive traffic whose relative ordering carries no test-relevant
// semantics.
func whitelistClasses() []string {
	return []string{
		"hello",
		"echo_request",
		"echo_reply",
	}
}
