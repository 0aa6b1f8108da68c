package simulation

import "github.com/ahassany/sts/fingerprint"

// A StateChangeObservation is a controller-reported state change still
// awaiting a matching ControllerStateChange internal event, identified per
// spec.md §3's PendingStateChange by `(fingerprint, controller_id)` only —
// the session id and wall-clock time are carried for replying, not for
// identity.
type StateChangeObservation struct {
	SessionID    string
	ControllerID string
	Fingerprint  fingerprint.Fingerprint
}

// A ValueRequestObservation is a controller-reported deterministic-value
// request still awaiting a matching DeterministicValue internal event.
type ValueRequestObservation struct {
	SessionID    string
	ControllerID string
	Fingerprint  fingerprint.Fingerprint
}

// ObserveStateChangePending records a state-change report coming in off a
// controller's sync channel, to be matched against a later
// ControllerStateChange internal event.
func (s *Simulation) ObserveStateChangePending(sessionID, controllerID string, fp fingerprint.Fingerprint) {
	s.pendingStateChangeList = append(s.pendingStateChangeList, StateChangeObservation{
		SessionID: sessionID, ControllerID: controllerID, Fingerprint: fp,
	})
}

// ConsumeStateChangePending removes and returns the first recorded
// observation matching (controllerID, fp), per spec.md §3's identity rule.
func (s *Simulation) ConsumeStateChangePending(controllerID string, fp fingerprint.Fingerprint) (StateChangeObservation, bool) {
	for i, obs := range s.pendingStateChangeList {
		if obs.ControllerID == controllerID && obs.Fingerprint.Equal(fp) {
			s.pendingStateChangeList = append(s.pendingStateChangeList[:i], s.pendingStateChangeList[i+1:]...)
			return obs, true
		}
	}
	return StateChangeObservation{}, false
}

// ObserveDeterministicValueRequest records a deterministic-value request
// coming in off a controller's sync channel.
func (s *Simulation) ObserveDeterministicValueRequest(sessionID, controllerID string, fp fingerprint.Fingerprint) {
	s.pendingValueRequestList = append(s.pendingValueRequestList, ValueRequestObservation{
		SessionID: sessionID, ControllerID: controllerID, Fingerprint: fp,
	})
}

// ConsumeDeterministicValueRequest removes and returns the first recorded
// request matching (controllerID, fp).
func (s *Simulation) ConsumeDeterministicValueRequest(controllerID string, fp fingerprint.Fingerprint) (ValueRequestObservation, bool) {
	for i, obs := range s.pendingValueRequestList {
		if obs.ControllerID == controllerID && obs.Fingerprint.Equal(fp) {
			s.pendingValueRequestList = append(s.pendingValueRequestList[:i], s.pendingValueRequestList[i+1:]...)
			return obs, true
		}
	}
	return ValueRequestObservation{}, false
}
