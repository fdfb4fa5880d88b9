package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// ErrDecode indicates an inbound speech buffer was not decodable.
// Decode failures are non-fatal to the conversation.
var ErrDecode = errors.New("undecodable audio payload")

// playbackPollInterval is how often an active player is checked for
// natural completion
const playbackPollInterval = 10 * time.Millisecond

// mp3Channels is the channel count go-mp3 always decodes to
const mp3Channels = 2

// PlaybackConfig holds playback pipeline configuration
type PlaybackConfig struct {
	// OnComplete is invoked once per buffer after playback finishes
	// naturally. It runs on the playback goroutine.
	OnComplete func()
	Logger     telemetry.Logger
}

// Playback owns the single audio output context. Buffers are decoded
// synchronously and played sequentially; the backend serializes its own
// speech segments so at most one buffer is in flight at a time.
type Playback struct {
	config PlaybackConfig
	logger telemetry.Logger

	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	closed     bool
	wg         sync.WaitGroup
}

// NewPlayback creates a playback pipeline. The output context is
// created lazily on the first Play call.
func NewPlayback(config PlaybackConfig) *Playback {
	return &Playback{
		config: config,
		logger: config.Logger.WithModule("playback"),
	}
}

// Play decodes an MP3 buffer and plays it to completion, invoking the
// completion callback when the buffer finishes naturally. Decode
// failures return ErrDecode and leave the pipeline usable.
func (p *Playback) Play(data []byte) error {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("playback closed")
	}
	if err := p.ensureContext(decoder.SampleRate()); err != nil {
		return err
	}
	if decoder.SampleRate() != p.sampleRate {
		return fmt.Errorf("%w: stream sample rate %d does not match output context %d",
			ErrDecode, decoder.SampleRate(), p.sampleRate)
	}

	// The platform suspends fresh audio contexts until first use
	if err := p.otoCtx.Resume(); err != nil {
		p.logger.Warn("Output context resume failed", telemetry.Err(err))
	}

	player := p.otoCtx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	p.logger.Debug("Playback started",
		telemetry.Int("compressed_bytes", len(data)),
		telemetry.Int("pcm_bytes", len(pcm)))

	p.wg.Add(1)
	go p.awaitCompletion(player)
	return nil
}

// awaitCompletion waits for natural end of playback and fires the
// completion notification
func (p *Playback) awaitCompletion(player *oto.Player) {
	defer p.wg.Done()
	for player.IsPlaying() {
		time.Sleep(playbackPollInterval)
	}
	if err := player.Close(); err != nil {
		p.logger.Warn("Player close failed", telemetry.Err(err))
	}
	p.logger.Debug("Playback complete")
	if p.config.OnComplete != nil {
		p.config.OnComplete()
	}
}

// ensureContext lazily creates the output context, sized to the first
// decoded stream. Callers hold p.mu.
func (p *Playback) ensureContext(sampleRate int) error {
	if p.otoCtx != nil {
		return nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: mp3Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("open output context: %w", err)
	}
	<-ready
	p.otoCtx = ctx
	p.sampleRate = sampleRate
	p.logger.Info("Output context ready", telemetry.Int("sample_rate", sampleRate))
	return nil
}

// Close marks the pipeline closed and waits for any in-flight playback
// to finish. Stopping a conversation does not cut playback short.
func (p *Playback) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}
