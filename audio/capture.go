package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/creastat/infra/telemetry"
	"github.com/gen2brain/malgo"
)

// ErrDeviceUnavailable indicates the microphone could not be acquired,
// either because permission was denied or the device is gone
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// FrameSink consumes encoded PCM frames produced by the capture pipeline.
// Ownership of the frame transfers to the sink.
type FrameSink interface {
	SendFrame(pcm []byte)
}

// CaptureConfig holds capture pipeline configuration
type CaptureConfig struct {
	DeviceID   string // empty selects the platform default microphone
	SampleRate int
	FrameSize  int // samples per frame, DefaultFrameSamples if zero
	Sink       FrameSink
	Logger     telemetry.Logger
}

// Capture owns the microphone device and produces fixed-size PCM frames.
// At most one Capture is active per conversation; the device handle and
// backend context are released on every exit path of Stop.
type Capture struct {
	config CaptureConfig
	logger telemetry.Logger

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	framer  *Framer
	started bool

	live  atomic.Bool // false once Stop begins; gates the device callback
	armed atomic.Bool // frames reach the sink only while armed
}

// NewCapture creates a capture pipeline. The device is not acquired
// until Start is called.
func NewCapture(config CaptureConfig) *Capture {
	return &Capture{
		config: config,
		logger: config.Logger.WithModule("capture"),
		framer: NewFramer(config.FrameSize),
	}
}

// Start acquires the configured microphone in mono at the configured
// sample rate and begins producing frames. Acquisition failures are
// reported as ErrDeviceUnavailable.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New("capture already started")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.config.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	if c.config.DeviceID != "" {
		id, err := resolveDevice(ctx, c.config.DeviceID)
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.onSamples(input)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	c.ctx = ctx
	c.device = device
	c.started = true
	c.live.Store(true)

	c.logger.Info("Capture started",
		telemetry.String("device_id", c.config.DeviceID),
		telemetry.Int("sample_rate", c.config.SampleRate))
	return nil
}

// Arm enables frame transmission to the sink
func (c *Capture) Arm() {
	c.armed.Store(true)
}

// Disarm stops frames from reaching the sink; the device keeps running
func (c *Capture) Disarm() {
	c.armed.Store(false)
}

// Stop disarms the pipeline, stops the device and releases the backend
// context. It is idempotent and safe to call when never started. No
// frame reaches the sink after Stop returns.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	c.live.Store(false)
	c.armed.Store(false)

	if err := c.device.Stop(); err != nil {
		c.logger.Warn("Device stop failed", telemetry.Err(err))
	}
	c.device.Uninit()
	if err := c.ctx.Uninit(); err != nil {
		c.logger.Warn("Context uninit failed", telemetry.Err(err))
	}
	c.ctx.Free()

	c.device = nil
	c.ctx = nil
	c.framer.Reset()
	c.started = false

	c.logger.Info("Capture stopped")
}

// onSamples runs on the audio backend thread for every captured block
func (c *Capture) onSamples(input []byte) {
	if !c.live.Load() {
		return
	}
	c.framer.Push(DecodeF32LE(input), func(frame []float32) {
		if !c.armed.Load() {
			return
		}
		c.config.Sink.SendFrame(EncodeS16LE(frame))
	})
}

// DeviceInfo describes an available capture device
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}

// CaptureDevices enumerates the available microphones
func CaptureDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        info.ID.String(),
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// resolveDevice matches a device identifier against the enumerated
// capture devices, by ID first and by name as a fallback
func resolveDevice(ctx *malgo.AllocatedContext, deviceID string) (malgo.DeviceID, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	for _, info := range infos {
		if info.ID.String() == deviceID || info.Name() == deviceID {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("%w: no capture device matching %q", ErrDeviceUnavailable, deviceID)
}
