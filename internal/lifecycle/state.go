package lifecycle

import (
	"connectord/internal/api"
)

// Trigger names used in transition errors.
const (
	triggerStart = "start"
	triggerStop  = "stop"
)

// startableStates are the states a start may fire from. Starting from
// error is an explicit retry.
var startableStates = map[api.ConnectorState]bool{
	api.StateConfigured: true,
	api.StateStopped:    true,
	api.StateError:      true,
}

// checkStart rejects a start request that would race an existing process.
// Rejection produces no state change and no event.
func checkStart(inst *api.ConnectorInstance) error {
	if !startableStates[inst.State] {
		return api.NewInvalidTransitionError(inst.InstanceID, inst.State, triggerStart)
	}
	return nil
}

// stopAction classifies what a stop request means in the instance's
// current state.
type stopAction int

const (
	// stopNoop: nothing to terminate, return success without touching
	// state or publishing an event.
	stopNoop stopAction = iota

	// stopProcess: a supervised process exists, run the full
	// stopping -> stopped sequence.
	stopProcess

	// stopLeftover: the instance is in error but the supervisor may still
	// hold a live process (heartbeat timeout leaves the process alive for
	// the operator to kill explicitly). Terminate it if present.
	stopLeftover
)

func classifyStop(state api.ConnectorState) stopAction {
	switch state {
	case api.StateRunning, api.StateStarting:
		return stopProcess
	case api.StateError:
		return stopLeftover
	default:
		// configured, stopped, stopping: already a no-op from the
		// caller's point of view.
		return stopNoop
	}
}
