package voiceclient

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/creastat/voiceclient/audio"
	"github.com/creastat/voiceclient/protocol"
)

var (
	// ErrConversationActive is returned when an operation requires an
	// idle client, such as starting a second conversation or changing
	// the microphone mid-conversation
	ErrConversationActive = errors.New("conversation already active")

	// ErrNotConnected is returned when the channel has not been opened
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected is returned by Connect when a channel is
	// already open; the client owns exactly one connection at a time
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrNoPendingOrder is returned by ConfirmOrder when no
	// confirm_order result has been received
	ErrNoPendingOrder = errors.New("no order pending confirmation")
)

// audioCapture is the capture pipeline surface the client drives
type audioCapture interface {
	Start() error
	Arm()
	Disarm()
	Stop()
}

// audioPlayer is the playback pipeline surface the client drives
type audioPlayer interface {
	Play(data []byte) error
	Close()
}

// ClientConfig holds client construction parameters. Collaborators and
// callbacks are optional; nil entries are simply not notified.
type ClientConfig struct {
	Config Config
	Map    MapAnnotator
	Orders OrderUI
	Logger telemetry.Logger

	// OnStateChange fires on every conversation state transition
	OnStateChange func(old, new State)

	// Transcript callbacks. OnInterimTranscript receives "" when a new
	// user turn starts, resetting the interim display.
	OnUserTranscript    func(transcript string)
	OnInterimTranscript func(transcript string)
	OnAgentResponse     func(text string)

	// Stored-profile callbacks
	OnPreferencesStored func(preferences string)
	OnBudgetStored      func(budget string)
}

// Client is the conversation orchestrator. It owns the channel, the
// state machine, and (while a conversation is active) the capture and
// playback pipelines. Inbound messages are dispatched strictly in
// arrival order by a single reader goroutine; outbound audio frames
// travel independently on the capture path.
type Client struct {
	config ClientConfig
	logger telemetry.Logger

	machine   *Machine
	functions *FunctionHandler

	mu             sync.Mutex
	channel        *Channel
	transmitter    *Transmitter
	capture        audioCapture
	playback       audioPlayer
	sessionID      string
	conversationID string
	active         bool
	done           chan struct{}

	// newCapture builds the capture pipeline per conversation;
	// replaceable in tests
	newCapture func() audioCapture
}

// NewClient creates a client. Connect must be called before starting
// a conversation.
func NewClient(config ClientConfig) (*Client, error) {
	config.Config = config.Config.withDefaults()
	if err := config.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = telemetry.New(telemetry.Config{Level: "info"})
	}

	c := &Client{
		config: config,
		logger: config.Logger.WithModule("voiceclient"),
	}
	c.machine = NewMachine(config.OnStateChange)
	c.functions = NewFunctionHandler(FunctionHandlerConfig{
		Map:                 config.Map,
		Orders:              config.Orders,
		Logger:              config.Logger,
		OnPreferencesStored: config.OnPreferencesStored,
		OnBudgetStored:      config.OnBudgetStored,
	})
	c.playback = audio.NewPlayback(audio.PlaybackConfig{
		Logger: config.Logger,
		OnComplete: func() {
			c.machine.Apply(TriggerPlaybackComplete)
		},
	})
	c.newCapture = func() audioCapture {
		return audio.NewCapture(audio.CaptureConfig{
			DeviceID:   c.config.Config.MicrophoneID,
			SampleRate: c.config.Config.SampleRate,
			FrameSize:  c.config.Config.FrameSize,
			Sink:       c.transmitter,
			Logger:     c.config.Logger,
		})
	}
	return c, nil
}

// Connect dials the channel and starts the reader goroutine. At most
// one connection is open at a time; Close releases it.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.channel != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial channel: %w", err)
	}

	c.mu.Lock()
	if c.channel != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrAlreadyConnected
	}
	c.channel = NewChannel(conn)
	c.transmitter = NewTransmitter(TransmitterConfig{
		Channel:  c.channel,
		Interval: c.config.Config.SendInterval,
		Logger:   c.config.Logger,
	})
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(conn)
	c.logger.Info("Channel connected", telemetry.String("url", url))
	return nil
}

// StartConversation negotiates the session configuration and begins a
// conversation. Starting while one is active is rejected.
func (c *Client) StartConversation() error {
	c.mu.Lock()
	if c.channel == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.active {
		c.mu.Unlock()
		return ErrConversationActive
	}
	c.active = true
	c.conversationID = uuid.NewString()
	channel := c.channel
	c.mu.Unlock()

	if err := channel.WriteJSON(protocol.NewUpdateConfigMessage(c.config.Config.sessionConfig())); err != nil {
		c.setInactive()
		return fmt.Errorf("send update_config: %w", err)
	}
	if err := channel.WriteJSON(protocol.NewStartConversationMessage()); err != nil {
		c.setInactive()
		return fmt.Errorf("send start_conversation: %w", err)
	}

	c.logger.Info("Conversation starting", telemetry.String("conversation_id", c.conversationID))
	return nil
}

// StopConversation tears down capture and transmission immediately,
// notifies the server, and returns the state to idle. In-flight
// playback is allowed to finish. Idempotent, safe when never started.
func (c *Client) StopConversation() error {
	c.mu.Lock()
	channel := c.channel
	wasActive := c.active
	c.active = false
	c.mu.Unlock()

	c.teardownCapture()
	c.machine.Apply(TriggerConversationStopped)

	if channel != nil && wasActive {
		if err := channel.WriteJSON(protocol.NewStopConversationMessage()); err != nil {
			c.logger.Warn("Failed to send stop_conversation", telemetry.Err(err))
		}
	}
	if wasActive {
		c.logger.Info("Conversation stopped", telemetry.String("conversation_id", c.conversationID))
	}
	return nil
}

// ConfirmOrder sends the cached order summary back over the channel,
// verbatim, as a confirmed_order message
func (c *Client) ConfirmOrder() error {
	summary, ok := c.functions.PendingOrder()
	if !ok {
		c.logger.Warn("Confirm requested with no pending order")
		return ErrNoPendingOrder
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return ErrNotConnected
	}

	if err := channel.WriteJSON(protocol.NewConfirmedOrderMessage(summary)); err != nil {
		return fmt.Errorf("send confirmed_order: %w", err)
	}
	c.logger.Info("Order confirmed", telemetry.String("summary", summary))
	return nil
}

// SetMicrophone selects the capture device for subsequent
// conversations. Changing it mid-conversation is rejected.
func (c *Client) SetMicrophone(deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrConversationActive
	}
	c.config.Config.MicrophoneID = deviceID
	return nil
}

// State returns the current conversation state
func (c *Client) State() State {
	return c.machine.State()
}

// SessionID returns the server-assigned session identifier, empty
// until the connected handshake arrives
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Close stops any active conversation and closes the channel
func (c *Client) Close() error {
	_ = c.StopConversation()
	c.playback.Close()

	c.mu.Lock()
	channel := c.channel
	done := c.done
	c.channel = nil
	c.mu.Unlock()

	if channel == nil {
		return nil
	}
	err := channel.Close()
	if done != nil {
		<-done
	}
	return err
}

// readLoop is the single reader: inbound messages are parsed and fully
// dispatched one at a time, preserving arrival order
func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		done := c.done
		c.mu.Unlock()
		if done != nil {
			close(done)
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.onChannelDown(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			var unknown protocol.ErrUnknownMessageType
			if errors.As(err, &unknown) {
				c.logger.Debug("Skipping unknown message type", telemetry.String("type", unknown.Type))
			} else {
				c.logger.Warn("Dropping malformed message", telemetry.Err(err))
			}
			continue
		}

		c.dispatch(msg)
	}
}

// onChannelDown handles a transport-level read failure: a dead channel
// mid-conversation is fatal to the conversation
func (c *Client) onChannelDown(err error) {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.MarkClosed()
	}
	wasActive := c.active
	c.active = false
	c.mu.Unlock()

	if wasActive {
		c.logger.Error("Channel lost mid-conversation", telemetry.Err(err))
		c.teardownCapture()
		c.machine.Apply(TriggerError)
	} else {
		c.logger.Info("Channel closed", telemetry.Err(err))
	}
}

// dispatch routes one inbound message. A panic in a handler is
// contained to the conversation: it is logged with a stack trace and
// surfaces as the error state rather than crashing the reader.
func (c *Client) dispatch(msg protocol.ServerMessage) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			c.logger.Error("Dispatch panicked",
				telemetry.String("message_type", string(msg.MessageType())),
				telemetry.String("panic", fmt.Sprint(r)),
				telemetry.String("stack", string(buf[:n])))
			c.teardownCapture()
			c.machine.Apply(TriggerError)
		}
	}()

	switch m := msg.(type) {
	case protocol.Connected:
		c.mu.Lock()
		c.sessionID = m.SessionID
		c.mu.Unlock()
		c.logger.Info("Session established", telemetry.String("session_id", m.SessionID))

	case protocol.ConversationStarted:
		c.onConversationStarted()

	case protocol.ConversationStopped:
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		c.teardownCapture()
		c.machine.Apply(TriggerConversationStopped)

	case protocol.SpeechStarted:
		c.machine.Apply(TriggerSpeechStarted)
		if c.config.OnInterimTranscript != nil {
			c.config.OnInterimTranscript("")
		}

	case protocol.UserSpeech:
		c.logger.Info("User turn", telemetry.String("transcript", m.Transcript))
		if c.config.OnUserTranscript != nil {
			c.config.OnUserTranscript(m.Transcript)
		}

	case protocol.InterimTranscript:
		if c.config.OnInterimTranscript != nil {
			c.config.OnInterimTranscript(m.Transcript)
		}

	case protocol.AgentProcessing:
		c.machine.Apply(TriggerAgentProcessing)

	case protocol.AgentResponse:
		c.logger.Info("Agent turn", telemetry.String("response", m.Response))
		if c.config.OnAgentResponse != nil {
			c.config.OnAgentResponse(m.Response)
		}

	case protocol.AgentSpeaking:
		// Speaking begins before playback starts, so a buffer that
		// finishes playing instantly still observes the speaking state
		// when its completion fires. A rejected buffer rolls back.
		prev := c.machine.State()
		c.machine.Apply(TriggerAgentSpeaking)
		if err := c.playback.Play(m.Audio); err != nil {
			// A single malformed speech chunk must not abort the session
			c.logger.Warn("Speech playback failed", telemetry.Err(err))
			c.machine.rollback(StateSpeaking, prev)
		}

	case protocol.FunctionCall:
		c.functions.Handle(m.Function, m.Result)

	case protocol.ApprovalRequest:
		c.logger.Info("Approval requested", telemetry.String("request", m.Request))
		if c.config.Orders != nil {
			c.config.Orders.OnApprovalRequested(m.Request)
		}

	case protocol.ServerError:
		c.logger.Error("Channel error", telemetry.String("message", m.Message))
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		c.teardownCapture()
		c.machine.Apply(TriggerError)
	}
}

// onConversationStarted spins up the capture pipeline in response to
// the server acknowledging the conversation
func (c *Client) onConversationStarted() {
	c.mu.Lock()
	if !c.active {
		// A stop was issued before the ack arrived; the mic stays off
		c.mu.Unlock()
		return
	}
	if c.capture != nil {
		c.mu.Unlock()
		c.machine.Apply(TriggerConversationStarted)
		return
	}
	capture := c.newCapture()
	c.capture = capture
	transmitter := c.transmitter
	c.mu.Unlock()

	if err := capture.Start(); err != nil {
		// Device acquisition failures share the channel-error path
		c.logger.Error("Microphone unavailable", telemetry.Err(err))
		c.mu.Lock()
		c.capture = nil
		c.active = false
		c.mu.Unlock()
		c.machine.Apply(TriggerError)
		return
	}

	c.mu.Lock()
	cancelled := !c.active || c.capture != capture
	c.mu.Unlock()
	if cancelled {
		// Stopped while the device was being acquired; release it
		// without ever arming
		capture.Disarm()
		capture.Stop()
		return
	}

	capture.Arm()
	if transmitter != nil {
		transmitter.Arm()
	}
	c.machine.Apply(TriggerConversationStarted)
}

// teardownCapture releases the capture pipeline and disarms the
// transmitter; safe to call repeatedly
func (c *Client) teardownCapture() {
	c.mu.Lock()
	capture := c.capture
	transmitter := c.transmitter
	c.capture = nil
	c.mu.Unlock()

	if transmitter != nil {
		transmitter.Disarm()
	}
	if capture != nil {
		capture.Disarm()
		capture.Stop()
	}
}

// setInactive clears the active flag after a failed start
func (c *Client) setInactive() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}
