package protocol

// ClientMessageType defines client-to-server message types
type ClientMessageType string

const (
	ClientUpdateConfig      ClientMessageType = "update_config"      // Session configuration
	ClientStartConversation ClientMessageType = "start_conversation" // Begin a conversation
	ClientStopConversation  ClientMessageType = "stop_conversation"  // End the conversation
	ClientConfirmedOrder    ClientMessageType = "confirmed_order"    // User confirmed the pending order
)

// ClientMessage represents a control message sent to the server.
// Outbound audio is not a ClientMessage; it travels as raw binary frames.
type ClientMessage struct {
	Type         ClientMessageType `json:"type"`
	Config       *SessionConfig    `json:"config,omitempty"`
	OrderSummary string            `json:"order_summary,omitempty"`
}

// SessionConfig is the configuration surface negotiated before a conversation
type SessionConfig struct {
	SampleRate int    `json:"sample_rate"`
	LLMModel   string `json:"llm_model"`
	TTSModel   string `json:"tts_model"`
	VoiceID    string `json:"elevenlabs_voice_id"`
}

// NewUpdateConfigMessage creates an update_config message
func NewUpdateConfigMessage(config SessionConfig) *ClientMessage {
	return &ClientMessage{
		Type:   ClientUpdateConfig,
		Config: &config,
	}
}

// NewStartConversationMessage creates a start_conversation message
func NewStartConversationMessage() *ClientMessage {
	return &ClientMessage{
		Type: ClientStartConversation,
	}
}

// NewStopConversationMessage creates a stop_conversation message
func NewStopConversationMessage() *ClientMessage {
	return &ClientMessage{
		Type: ClientStopConversation,
	}
}

// NewConfirmedOrderMessage creates a confirmed_order message carrying the
// order summary exactly as it was received in the confirm_order result
func NewConfirmedOrderMessage(summary string) *ClientMessage {
	return &ClientMessage{
		Type:         ClientConfirmedOrder,
		OrderSummary: summary,
	}
}
