package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseLifecycleMessages(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"connected","session_id":"abc123"}`))
	require.NoError(t, err)
	connected, ok := msg.(Connected)
	require.True(t, ok, "expected Connected, got %T", msg)
	assert.Equal(t, "abc123", connected.SessionID)

	msg, err = Parse([]byte(`{"type":"conversation_started","timestamp":"2025-01-01T00:00:00"}`))
	require.NoError(t, err)
	assert.Equal(t, MessageConversationStarted, msg.MessageType())

	msg, err = Parse([]byte(`{"type":"conversation_stopped"}`))
	require.NoError(t, err)
	assert.Equal(t, MessageConversationStopped, msg.MessageType())
}

func TestParseTranscriptMessages(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"user_speech","transcript":"milk and eggs"}`))
	require.NoError(t, err)
	speech, ok := msg.(UserSpeech)
	require.True(t, ok)
	assert.Equal(t, "milk and eggs", speech.Transcript)

	msg, err = Parse([]byte(`{"type":"interim_transcript","transcript":"milk and","is_final":false}`))
	require.NoError(t, err)
	interim, ok := msg.(InterimTranscript)
	require.True(t, ok)
	assert.Equal(t, "milk and", interim.Transcript)
	assert.False(t, interim.IsFinal)

	msg, err = Parse([]byte(`{"type":"agent_response","response":"Got it"}`))
	require.NoError(t, err)
	response, ok := msg.(AgentResponse)
	require.True(t, ok)
	assert.Equal(t, "Got it", response.Response)
}

func TestParseAgentSpeakingAudio(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"agent_speaking","audio":[255,0,1,128]}`))
	require.NoError(t, err)
	speaking, ok := msg.(AgentSpeaking)
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0x00, 0x01, 0x80}, []byte(speaking.Audio))
}

func TestParseAgentSpeakingRejectsBadAudio(t *testing.T) {
	_, err := Parse([]byte(`{"type":"agent_speaking","audio":"not-an-array"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"type":"agent_speaking","audio":[256]}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"type":"agent_speaking","audio":[-1]}`))
	assert.Error(t, err)
}

func TestParseFunctionCall(t *testing.T) {
	raw := `{
		"type": "function_call",
		"function": "search_restaurants",
		"result": {
			"success": true,
			"restaurants": [
				{"name": "Taco Joint", "lat": 30.3108, "lng": -97.74, "price_level": "$", "delivery_platforms": ["Uber Eats"]},
				{"name": "Thai Garden", "lat": 30.27, "lng": -97.75}
			]
		}
	}`
	msg, err := Parse([]byte(raw))
	require.NoError(t, err)
	call, ok := msg.(FunctionCall)
	require.True(t, ok)
	assert.Equal(t, FunctionSearchRestaurants, call.Function)
	assert.True(t, call.Result.Success)
	require.Len(t, call.Result.Restaurants, 2)
	assert.Equal(t, "Taco Joint", call.Result.Restaurants[0].Name)
	assert.Equal(t, []string{"Uber Eats"}, call.Result.Restaurants[0].DeliveryPlatforms)
}

// A result with no success field decodes as success=false so the
// dispatcher treats it as a failed invocation.
func TestParseFunctionCallMissingSuccess(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"function_call","function":"store_budget_info","result":{"budget":"moderate"}}`))
	require.NoError(t, err)
	call := msg.(FunctionCall)
	assert.False(t, call.Result.Success)
	assert.Equal(t, "moderate", call.Result.Budget)
}

func TestParseErrorMessage(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"error","error":"Failed to connect to Flux"}`))
	require.NoError(t, err)
	serverErr, ok := msg.(ServerError)
	require.True(t, ok)
	assert.Equal(t, "Failed to connect to Flux", serverErr.Message)
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"flux_event","data":{}}`))
	var unknown ErrUnknownMessageType
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "flux_event", unknown.Type)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"type":`))
	assert.Error(t, err)
}

// For any byte buffer, the numeric-array encoding SHALL round-trip
// through MarshalJSON and UnmarshalJSON unchanged.
func TestPropertyByteArrayRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(rt, "data")

		encoded, err := json.Marshal(ByteArray(data))
		if err != nil {
			rt.Fatalf("marshal failed: %v", err)
		}

		var decoded ByteArray
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			rt.Fatalf("unmarshal failed: %v", err)
		}

		if len(decoded) != len(data) {
			rt.Fatalf("length mismatch: sent %d, got %d", len(data), len(decoded))
		}
		for i := range data {
			if decoded[i] != data[i] {
				rt.Fatalf("byte mismatch at %d: sent %d, got %d", i, data[i], decoded[i])
			}
		}
	})
}

func TestOutboundMessages(t *testing.T) {
	msg := NewUpdateConfigMessage(SessionConfig{
		SampleRate: 16000,
		LLMModel:   "gpt-4o-mini",
		TTSModel:   "aura-2-phoebe-en",
		VoiceID:    "pNInz6obpgDQGcFmaJgB",
	})
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "update_config",
		"config": {
			"sample_rate": 16000,
			"llm_model": "gpt-4o-mini",
			"tts_model": "aura-2-phoebe-en",
			"elevenlabs_voice_id": "pNInz6obpgDQGcFmaJgB"
		}
	}`, string(data))

	data, err = json.Marshal(NewStartConversationMessage())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"start_conversation"}`, string(data))

	data, err = json.Marshal(NewConfirmedOrderMessage("2 items, $12.50"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"confirmed_order","order_summary":"2 items, $12.50"}`, string(data))
}
