// Package voiceclient implements a real-time, turn-based voice
// conversation client. It captures microphone audio, streams PCM frames
// to a remote conversational agent over a WebSocket channel, plays back
// synthesized speech, and dispatches structured channel events to the
// conversation state machine and external collaborators.
package voiceclient

import "sync"

// State is the externally visible conversation state. Exactly one
// value is active at any time and only the Machine mutates it.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// Trigger identifies a dispatched event that may change the state
type Trigger string

const (
	TriggerConversationStarted Trigger = "conversation_started"
	TriggerConversationStopped Trigger = "conversation_stopped"
	TriggerSpeechStarted       Trigger = "speech_started"
	TriggerAgentProcessing     Trigger = "agent_processing"
	TriggerAgentSpeaking       Trigger = "agent_speaking"
	TriggerPlaybackComplete    Trigger = "playback_complete"
	TriggerError               Trigger = "error"
)

// Next is the pure transition function. Stop always returns to idle
// and error is reachable from any state; error is otherwise terminal
// until an explicit stop. Turn-progress triggers only apply to an
// active conversation, so late events after a stop leave idle alone.
func Next(s State, t Trigger) State {
	switch t {
	case TriggerConversationStopped:
		return StateIdle
	case TriggerError:
		return StateError
	}

	if s == StateError {
		return StateError
	}

	switch t {
	case TriggerConversationStarted:
		return StateListening
	case TriggerSpeechStarted:
		if s == StateIdle {
			return StateIdle
		}
		return StateListening
	case TriggerAgentProcessing:
		if s == StateIdle {
			return StateIdle
		}
		return StateProcessing
	case TriggerAgentSpeaking:
		if s == StateIdle {
			return StateIdle
		}
		return StateSpeaking
	case TriggerPlaybackComplete:
		if s == StateSpeaking {
			return StateListening
		}
		return s
	}

	return s
}

// Machine holds the current conversation state and notifies an
// observer on every change. Transitions are driven exclusively by
// dispatched events; no component-internal timer touches it.
type Machine struct {
	mu       sync.Mutex
	state    State
	onChange func(old, new State)
}

// NewMachine creates a machine in StateIdle
func NewMachine(onChange func(old, new State)) *Machine {
	return &Machine{
		state:    StateIdle,
		onChange: onChange,
	}
}

// Apply runs one transition and returns the resulting state. The
// change notification fires only when the state actually moves.
func (m *Machine) Apply(t Trigger) State {
	m.mu.Lock()
	old := m.state
	next := Next(old, t)
	m.state = next
	m.mu.Unlock()

	if next != old && m.onChange != nil {
		m.onChange(old, next)
	}
	return next
}

// State returns the current conversation state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// rollback undoes an optimistic transition: if the machine is still in
// cur, it returns to prev. A concurrent transition away from cur (a
// stop, an error) wins and the rollback is a no-op.
func (m *Machine) rollback(cur, prev State) {
	m.mu.Lock()
	if m.state != cur {
		m.mu.Unlock()
		return
	}
	m.state = prev
	m.mu.Unlock()

	if prev != cur && m.onChange != nil {
		m.onChange(cur, prev)
	}
}
