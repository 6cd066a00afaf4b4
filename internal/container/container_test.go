package container

import "testing"

func TestStateIsLiveForNIC(t *testing.T) {
	live := []State{StateBooting, StateRunning, StateStarting}
	dead := []State{StateStopped, StateSetup, StateStopping}

	for _, s := range live {
		if !s.IsLiveForNIC() {
			t.Errorf("%s should be live for NIC", s)
		}
	}
	for _, s := range dead {
		if s.IsLiveForNIC() {
			t.Errorf("%s should not be live for NIC", s)
		}
	}
}

func TestStateIsLiveForDevnode(t *testing.T) {
	live := []State{StateBooting, StateRunning, StateSetup}
	dead := []State{StateStopped, StateStarting, StateStopping}

	for _, s := range live {
		if !s.IsLiveForDevnode() {
			t.Errorf("%s should be live for devnode projection", s)
		}
	}
	for _, s := range dead {
		if s.IsLiveForDevnode() {
			t.Errorf("%s should not be live for devnode projection", s)
		}
	}
}
