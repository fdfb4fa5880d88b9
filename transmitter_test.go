package voiceclient

import (
	"sync"
	"testing"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// fakeChannel records binary writes and can simulate a closed channel
type fakeChannel struct {
	mu     sync.Mutex
	open   bool
	frames [][]byte
}

func (f *fakeChannel) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeChannel) WriteBinary(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrChannelClosed
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeChannel) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func testLogger() telemetry.Logger {
	return telemetry.New(telemetry.Config{Level: "error"})
}

func TestTransmitterDropsWhenDisarmed(t *testing.T) {
	ch := &fakeChannel{open: true}
	tx := NewTransmitter(TransmitterConfig{Channel: ch, Logger: testLogger()})

	tx.SendFrame([]byte{1})
	assert.Equal(t, 0, ch.sent())

	tx.Arm()
	tx.SendFrame([]byte{2})
	assert.Equal(t, 1, ch.sent())

	tx.Disarm()
	tx.SendFrame([]byte{3})
	assert.Equal(t, 1, ch.sent())
}

func TestTransmitterDropsOnClosedChannel(t *testing.T) {
	ch := &fakeChannel{open: false}
	tx := NewTransmitter(TransmitterConfig{Channel: ch, Logger: testLogger()})
	tx.Arm()

	// silently dropped, no panic, no error surfaced
	tx.SendFrame([]byte{1, 2, 3})
	assert.Equal(t, 0, ch.sent())
}

// Frames produced faster than the minimum interval SHALL be dropped,
// bounding transmissions in any window of length T by ceil(T/interval),
// regardless of production rate.
func TestPropertyTransmitterThrottle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		interval := time.Duration(rapid.IntRange(10, 200).Draw(rt, "intervalMs")) * time.Millisecond
		steps := rapid.SliceOfN(rapid.IntRange(0, 50), 1, 200).Draw(rt, "stepsMs")

		now := time.Unix(0, 0)
		ch := &fakeChannel{open: true}
		tx := NewTransmitter(TransmitterConfig{
			Channel:  ch,
			Interval: interval,
			Now:      func() time.Time { return now },
			Logger:   testLogger(),
		})
		tx.Arm()

		var elapsed time.Duration
		for _, stepMs := range steps {
			now = now.Add(time.Duration(stepMs) * time.Millisecond)
			elapsed += time.Duration(stepMs) * time.Millisecond
			tx.SendFrame([]byte{0})
		}

		bound := int(elapsed/interval) + 1
		if ch.sent() > bound {
			rt.Fatalf("sent %d frames in %v with interval %v, bound is %d",
				ch.sent(), elapsed, interval, bound)
		}
	})
}

func TestTransmitterSpacing(t *testing.T) {
	now := time.Unix(0, 0)
	ch := &fakeChannel{open: true}
	tx := NewTransmitter(TransmitterConfig{
		Channel:  ch,
		Interval: 100 * time.Millisecond,
		Now:      func() time.Time { return now },
		Logger:   testLogger(),
	})
	tx.Arm()

	tx.SendFrame([]byte{1}) // first frame passes
	tx.SendFrame([]byte{2}) // same instant, dropped
	assert.Equal(t, 1, ch.sent())

	now = now.Add(50 * time.Millisecond)
	tx.SendFrame([]byte{3}) // too soon, dropped
	assert.Equal(t, 1, ch.sent())

	now = now.Add(50 * time.Millisecond)
	tx.SendFrame([]byte{4}) // interval elapsed
	assert.Equal(t, 2, ch.sent())
}
