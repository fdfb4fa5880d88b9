package voiceclient

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/creastat/infra/telemetry"
)

// DefaultSendInterval is the minimum spacing between outbound frames
const DefaultSendInterval = 100 * time.Millisecond

// frameWriter is the outbound half of the channel the transmitter needs
type frameWriter interface {
	Open() bool
	WriteBinary(data []byte) error
}

// TransmitterConfig holds transmitter configuration
type TransmitterConfig struct {
	Channel  frameWriter
	Interval time.Duration    // DefaultSendInterval if zero
	Now      func() time.Time // injectable clock for tests
	Logger   telemetry.Logger
}

// Transmitter pushes binary PCM frames onto the channel. It is a pure
// adapter: no retry, no buffering. Frames arriving faster than the
// minimum interval are dropped, and a frame hitting a closed channel
// is silently dropped so short channel hiccups never interrupt capture.
type Transmitter struct {
	config TransmitterConfig
	logger telemetry.Logger
	armed  atomic.Bool

	mu       sync.Mutex
	lastSend time.Time
}

// NewTransmitter creates a transmitter over the given channel
func NewTransmitter(config TransmitterConfig) *Transmitter {
	if config.Interval <= 0 {
		config.Interval = DefaultSendInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Transmitter{
		config: config,
		logger: config.Logger.WithModule("transmitter"),
	}
}

// Arm enables frame transmission
func (t *Transmitter) Arm() {
	t.armed.Store(true)
}

// Disarm drops all subsequent frames until re-armed
func (t *Transmitter) Disarm() {
	t.armed.Store(false)
}

// SendFrame implements audio.FrameSink. The send gate requires the
// transmitter armed, the channel open, and the minimum interval
// elapsed since the previous send; otherwise the frame is dropped.
func (t *Transmitter) SendFrame(pcm []byte) {
	if !t.armed.Load() || !t.config.Channel.Open() {
		return
	}

	t.mu.Lock()
	now := t.config.Now()
	if now.Sub(t.lastSend) < t.config.Interval {
		t.mu.Unlock()
		return
	}
	t.lastSend = now
	t.mu.Unlock()

	if err := t.config.Channel.WriteBinary(pcm); err != nil {
		// Transient send failure: capture continues, nothing surfaces
		t.logger.Debug("Dropped frame on closed channel", telemetry.Int("size", len(pcm)))
		return
	}
	t.logger.Debug("Sent frame", telemetry.Int("size", len(pcm)))
}
