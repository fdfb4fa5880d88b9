package voiceclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNextHappyPath(t *testing.T) {
	s := StateIdle
	s = Next(s, TriggerConversationStarted)
	assert.Equal(t, StateListening, s)
	s = Next(s, TriggerSpeechStarted)
	assert.Equal(t, StateListening, s)
	s = Next(s, TriggerAgentProcessing)
	assert.Equal(t, StateProcessing, s)
	s = Next(s, TriggerAgentSpeaking)
	assert.Equal(t, StateSpeaking, s)
	s = Next(s, TriggerPlaybackComplete)
	assert.Equal(t, StateListening, s)
	s = Next(s, TriggerConversationStopped)
	assert.Equal(t, StateIdle, s)
}

func TestNextErrorIsTerminalUntilStop(t *testing.T) {
	s := Next(StateProcessing, TriggerError)
	assert.Equal(t, StateError, s)

	// no turn-progress trigger escapes error
	for _, tr := range []Trigger{
		TriggerConversationStarted,
		TriggerSpeechStarted,
		TriggerAgentProcessing,
		TriggerAgentSpeaking,
		TriggerPlaybackComplete,
	} {
		assert.Equal(t, StateError, Next(StateError, tr), "trigger %s", tr)
	}

	// explicit stop resets
	assert.Equal(t, StateIdle, Next(StateError, TriggerConversationStopped))
}

func TestNextPlaybackCompleteOnlyFromSpeaking(t *testing.T) {
	assert.Equal(t, StateListening, Next(StateSpeaking, TriggerPlaybackComplete))
	// playback finishing after a stop must not resurrect the conversation
	assert.Equal(t, StateIdle, Next(StateIdle, TriggerPlaybackComplete))
	assert.Equal(t, StateProcessing, Next(StateProcessing, TriggerPlaybackComplete))
}

func TestNextLateEventsAfterStop(t *testing.T) {
	for _, tr := range []Trigger{TriggerSpeechStarted, TriggerAgentProcessing, TriggerAgentSpeaking} {
		assert.Equal(t, StateIdle, Next(StateIdle, tr), "trigger %s", tr)
	}
}

var allTriggers = []Trigger{
	TriggerConversationStarted,
	TriggerConversationStopped,
	TriggerSpeechStarted,
	TriggerAgentProcessing,
	TriggerAgentSpeaking,
	TriggerPlaybackComplete,
	TriggerError,
}

var allStates = map[State]bool{
	StateIdle:       true,
	StateListening:  true,
	StateProcessing: true,
	StateSpeaking:   true,
	StateError:      true,
}

// For any sequence of triggers, the machine SHALL always be in exactly
// one of the five enumerated states, a stop SHALL always land in idle,
// and an error SHALL always land in error.
func TestPropertyMachineSingleValidState(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		triggers := rapid.SliceOfN(rapid.SampledFrom(allTriggers), 0, 50).Draw(rt, "triggers")

		m := NewMachine(nil)
		for _, tr := range triggers {
			s := m.Apply(tr)
			if !allStates[s] {
				rt.Fatalf("machine entered unknown state %q", s)
			}
			if tr == TriggerConversationStopped && s != StateIdle {
				rt.Fatalf("stop landed in %q, want idle", s)
			}
			if tr == TriggerError && s != StateError {
				rt.Fatalf("error landed in %q, want error", s)
			}
		}
	})
}

func TestMachineRollback(t *testing.T) {
	var changes [][2]State
	m := NewMachine(func(old, new State) {
		changes = append(changes, [2]State{old, new})
	})
	m.Apply(TriggerConversationStarted)
	m.Apply(TriggerAgentProcessing)
	m.Apply(TriggerAgentSpeaking)

	m.rollback(StateSpeaking, StateProcessing)
	assert.Equal(t, StateProcessing, m.State())
	assert.Equal(t, [2]State{StateSpeaking, StateProcessing}, changes[len(changes)-1])

	// a machine that already moved on is not clobbered
	m.Apply(TriggerConversationStopped)
	m.rollback(StateSpeaking, StateProcessing)
	assert.Equal(t, StateIdle, m.State())
}

func TestMachineOnChangeFiresOnlyOnTransitions(t *testing.T) {
	var changes [][2]State
	m := NewMachine(func(old, new State) {
		changes = append(changes, [2]State{old, new})
	})

	m.Apply(TriggerConversationStarted)
	m.Apply(TriggerSpeechStarted) // reaffirms listening, no change
	m.Apply(TriggerAgentProcessing)

	assert.Equal(t, [][2]State{
		{StateIdle, StateListening},
		{StateListening, StateProcessing},
	}, changes)
}
