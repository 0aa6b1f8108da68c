package topology

import "testing"

// These mirror original_source/tests/unit/sts/topology/connectivity_tracker_test.go
// one-for-one, substituting plain string ids for the Python test's Mock
// objects.

func TestConnectivityTrackerInit(t *testing.T) {
	t1 := NewConnectivityTracker(true)
	t2 := NewConnectivityTracker(false)

	if !t1.DefaultConnected {
		t.Fatal("tracker1 should default-connect")
	}
	if t2.DefaultConnected {
		t.Fatal("tracker2 should default-disconnect")
	}
}

func TestAddConnectedHosts(t *testing.T) {
	tracker := NewConnectivityTracker(false)
	tracker.AddConnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	if !tracker.IsConnected("h1", "h2") {
		t.Fatal("expected h1,h2 connected")
	}
	if got := tracker.ConnectedCount("h1", "h2"); got != 1 {
		t.Fatalf("connected count = %d, want 1", got)
	}
	if got := tracker.DisconnectedCount("h1", "h2"); got != 0 {
		t.Fatalf("disconnected count = %d, want 0", got)
	}
	if !tracker.HasPolicy("p1") {
		t.Fatal("expected policy p1 registered")
	}
}

func TestAddDisconnectedHosts(t *testing.T) {
	tracker := NewConnectivityTracker(true)
	tracker.AddDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	if tracker.IsConnected("h1", "h2") {
		t.Fatal("expected h1,h2 disconnected")
	}
	if got := tracker.ConnectedCount("h1", "h2"); got != 0 {
		t.Fatalf("connected count = %d, want 0", got)
	}
	if got := tracker.DisconnectedCount("h1", "h2"); got != 1 {
		t.Fatalf("disconnected count = %d, want 1", got)
	}
	if !tracker.HasPolicy("p1") {
		t.Fatal("expected policy p1 registered")
	}
}

func TestRemoveConnectedHosts(t *testing.T) {
	t1 := NewConnectivityTracker(false)
	t2 := NewConnectivityTracker(false)
	t1.AddConnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")
	t2.AddConnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	t1.RemoveConnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", true)
	t2.RemoveConnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", false)

	if t1.IsConnected("h1", "h2") {
		t.Fatal("t1: expected disconnected after remove")
	}
	if t1.ConnectedCount("h1", "h2") != 0 || t1.DisconnectedCount("h1", "h2") != 0 {
		t.Fatal("t1: expected empty records")
	}
	if t1.HasPolicy("p1") {
		t.Fatal("t1: policy should be forgotten when removePolicy=true")
	}

	if t2.IsConnected("h1", "h2") {
		t.Fatal("t2: expected disconnected after remove")
	}
	if !t2.HasPolicy("p1") {
		t.Fatal("t2: policy should survive when removePolicy=false")
	}
}

func TestRemoveConnectedHostsWildcard(t *testing.T) {
	tracker := NewConnectivityTracker(false)
	tracker.AddConnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	tracker.RemoveConnectedHosts("h1", "", "h2", "", true)

	if tracker.IsConnected("h1", "h2") {
		t.Fatal("expected disconnected after wildcard remove")
	}
	if tracker.HasPolicy("p1") {
		t.Fatal("policy should be forgotten")
	}
}

func TestRemoveDisconnectedHosts(t *testing.T) {
	t1 := NewConnectivityTracker(true)
	t1.AddDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")
	t2 := NewConnectivityTracker(true)
	t2.AddDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	t1.RemoveDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", true)
	t2.RemoveDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", false)

	if !t1.IsConnected("h1", "h2") {
		t.Fatal("t1: expected default-connected after remove")
	}
	if t1.HasPolicy("p1") {
		t.Fatal("t1: policy should be forgotten")
	}

	if !t2.IsConnected("h1", "h2") {
		t.Fatal("t2: expected default-connected after remove")
	}
	if !t2.HasPolicy("p1") {
		t.Fatal("t2: policy should survive")
	}
}

func TestRemoveDisconnectedHostsWildcard(t *testing.T) {
	tracker := NewConnectivityTracker(true)
	tracker.AddDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	tracker.RemoveDisconnectedHosts("h1", "", "h2", "", true)

	if !tracker.IsConnected("h1", "h2") {
		t.Fatal("expected default-connected after wildcard remove")
	}
	if tracker.HasPolicy("p1") {
		t.Fatal("policy should be forgotten")
	}
}

func TestRemovePolicy(t *testing.T) {
	tracker := NewConnectivityTracker(true)
	tracker.AddDisconnectedHosts("h1", "h1-eth0", "h2", "h2-eth0", "p1")

	tracker.RemovePolicy("p1")

	if !tracker.IsConnected("h1", "h2") {
		t.Fatal("expected default-connected after policy removal")
	}
	if tracker.HasPolicy("p1") {
		t.Fatal("policy should be gone")
	}
}

// TestIsConnectedDefaultsWhenNoRecord covers the "no record exists" branch
// of spec.md §4.6's ordering: connected -> disconnected -> default.
func TestIsConnectedDefaultsWhenNoRecord(t *testing.T) {
	if !NewConnectivityTracker(true).IsConnected("a", "b") {
		t.Fatal("expected default true")
	}
	if NewConnectivityTracker(false).IsConnected("a", "b") {
		t.Fatal("expected default false")
	}
}
