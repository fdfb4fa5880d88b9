package voiceclient

import (
	"fmt"
	"time"

	"github.com/creastat/voiceclient/protocol"
)

// Defaults mirror the backend's session defaults
const (
	DefaultSampleRate = 16000
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultTTSModel   = "aura-2-phoebe-en"
	DefaultVoiceID    = "pNInz6obpgDQGcFmaJgB"
)

// supportedSampleRates are the rates the channel negotiates
var supportedSampleRates = map[int]bool{
	8000:  true,
	16000: true,
	24000: true,
	48000: true,
}

// Config is the conversation configuration sent via update_config
// before start_conversation. The microphone selection is immutable for
// the duration of a conversation.
type Config struct {
	SampleRate   int
	LLMModel     string
	TTSModel     string
	VoiceID      string
	MicrophoneID string        // empty selects the platform default
	SendInterval time.Duration // minimum spacing between frames
	FrameSize    int           // samples per capture frame
}

// withDefaults fills unset fields
func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.LLMModel == "" {
		c.LLMModel = DefaultLLMModel
	}
	if c.TTSModel == "" {
		c.TTSModel = DefaultTTSModel
	}
	if c.VoiceID == "" {
		c.VoiceID = DefaultVoiceID
	}
	if c.SendInterval <= 0 {
		c.SendInterval = DefaultSendInterval
	}
	return c
}

// Validate checks the configuration surface
func (c Config) Validate() error {
	if !supportedSampleRates[c.SampleRate] {
		return fmt.Errorf("unsupported sample rate %d (supported: 8000, 16000, 24000, 48000)", c.SampleRate)
	}
	if c.FrameSize < 0 {
		return fmt.Errorf("frame size must not be negative, got %d", c.FrameSize)
	}
	return nil
}

// sessionConfig converts to the wire representation
func (c Config) sessionConfig() protocol.SessionConfig {
	return protocol.SessionConfig{
		SampleRate: c.SampleRate,
		LLMModel:   c.LLMModel,
		TTSModel:   c.TTSModel,
		VoiceID:    c.VoiceID,
	}
}
