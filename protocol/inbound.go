package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType defines server-to-client message types
type MessageType string

const (
	// Session lifecycle
	MessageConnected           MessageType = "connected"            // Channel handshake complete
	MessageConversationStarted MessageType = "conversation_started" // Conversation is live
	MessageConversationStopped MessageType = "conversation_stopped" // Conversation ended

	// Turn progress
	MessageSpeechStarted     MessageType = "speech_started"     // User began a turn
	MessageUserSpeech        MessageType = "user_speech"        // Final user transcript
	MessageInterimTranscript MessageType = "interim_transcript" // Partial user transcript
	MessageAgentProcessing   MessageType = "agent_processing"   // Agent is generating a reply
	MessageAgentResponse     MessageType = "agent_response"     // Agent reply text
	MessageAgentSpeaking     MessageType = "agent_speaking"     // Synthesized speech audio

	// Structured results
	MessageFunctionCall    MessageType = "function_call"    // Backend tool invocation outcome
	MessageApprovalRequest MessageType = "approval_request" // Automation layer wants user approval

	// Errors
	MessageError MessageType = "error"
)

// ServerMessage represents any message received from the channel
type ServerMessage interface {
	MessageType() MessageType
}

// Connected is the channel handshake acknowledgement
type Connected struct {
	SessionID string `json:"session_id"`
}

func (m Connected) MessageType() MessageType {
	return MessageConnected
}

// ConversationStarted confirms the conversation is live
type ConversationStarted struct {
	Timestamp string `json:"timestamp,omitempty"`
}

func (m ConversationStarted) MessageType() MessageType {
	return MessageConversationStarted
}

// ConversationStopped confirms the conversation ended
type ConversationStopped struct {
	Timestamp string `json:"timestamp,omitempty"`
}

func (m ConversationStopped) MessageType() MessageType {
	return MessageConversationStopped
}

// SpeechStarted marks the start of a user turn
type SpeechStarted struct {
	Timestamp string `json:"timestamp,omitempty"`
}

func (m SpeechStarted) MessageType() MessageType {
	return MessageSpeechStarted
}

// UserSpeech carries the final transcript of a user turn
type UserSpeech struct {
	Transcript string `json:"transcript"`
	Timestamp  string `json:"timestamp,omitempty"`
}

func (m UserSpeech) MessageType() MessageType {
	return MessageUserSpeech
}

// InterimTranscript carries a partial transcript while the user is still speaking
type InterimTranscript struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

func (m InterimTranscript) MessageType() MessageType {
	return MessageInterimTranscript
}

// AgentProcessing signals that the agent is generating a reply
type AgentProcessing struct {
	Timestamp string `json:"timestamp,omitempty"`
}

func (m AgentProcessing) MessageType() MessageType {
	return MessageAgentProcessing
}

// AgentResponse carries the agent's reply text
type AgentResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (m AgentResponse) MessageType() MessageType {
	return MessageAgentResponse
}

// AgentSpeaking carries a compressed speech audio buffer.
// The audio field travels as a JSON array of byte values.
type AgentSpeaking struct {
	Audio     ByteArray `json:"audio"`
	Timestamp string    `json:"timestamp,omitempty"`
}

func (m AgentSpeaking) MessageType() MessageType {
	return MessageAgentSpeaking
}

// FunctionCall reports the outcome of a backend-side tool invocation
type FunctionCall struct {
	Function FunctionName   `json:"function"`
	Result   FunctionResult `json:"result"`
}

func (m FunctionCall) MessageType() MessageType {
	return MessageFunctionCall
}

// ApprovalRequest asks the user to approve an automation step
type ApprovalRequest struct {
	Request string `json:"request"`
}

func (m ApprovalRequest) MessageType() MessageType {
	return MessageApprovalRequest
}

// ServerError reports a failure on the remote side
type ServerError struct {
	Message string `json:"error"`
}

func (m ServerError) MessageType() MessageType {
	return MessageError
}

// ByteArray is a byte buffer transported as a JSON array of numbers
type ByteArray []byte

// UnmarshalJSON decodes a numeric JSON array into bytes
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("audio payload is not a numeric array: %w", err)
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("audio byte out of range at index %d: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// MarshalJSON encodes bytes as a numeric JSON array
func (b ByteArray) MarshalJSON() ([]byte, error) {
	values := make([]int, len(b))
	for i, v := range b {
		values[i] = int(v)
	}
	return json.Marshal(values)
}

// ErrUnknownMessageType is returned by Parse for unrecognized type tags.
// Callers are expected to skip these without failing the session.
type ErrUnknownMessageType struct {
	Type string
}

func (e ErrUnknownMessageType) Error() string {
	return "unknown message type: " + e.Type
}

// Parse decodes a raw channel message into its typed variant
func Parse(data []byte) (ServerMessage, error) {
	var tag struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("invalid channel message: %w", err)
	}

	var msg ServerMessage
	var err error

	switch tag.Type {
	case MessageConnected:
		msg, err = decode[Connected](data)
	case MessageConversationStarted:
		msg, err = decode[ConversationStarted](data)
	case MessageConversationStopped:
		msg, err = decode[ConversationStopped](data)
	case MessageSpeechStarted:
		msg, err = decode[SpeechStarted](data)
	case MessageUserSpeech:
		msg, err = decode[UserSpeech](data)
	case MessageInterimTranscript:
		msg, err = decode[InterimTranscript](data)
	case MessageAgentProcessing:
		msg, err = decode[AgentProcessing](data)
	case MessageAgentResponse:
		msg, err = decode[AgentResponse](data)
	case MessageAgentSpeaking:
		msg, err = decode[AgentSpeaking](data)
	case MessageFunctionCall:
		msg, err = decode[FunctionCall](data)
	case MessageApprovalRequest:
		msg, err = decode[ApprovalRequest](data)
	case MessageError:
		msg, err = decode[ServerError](data)
	default:
		return nil, ErrUnknownMessageType{Type: string(tag.Type)}
	}

	if err != nil {
		return nil, fmt.Errorf("invalid %s message: %w", tag.Type, err)
	}
	return msg, nil
}

func decode[T ServerMessage](data []byte) (ServerMessage, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
