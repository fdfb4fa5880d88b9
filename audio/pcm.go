// Package audio implements the capture and playback pipelines: microphone
// acquisition, PCM framing for outbound streaming, and sequential playback
// of synthesized speech.
package audio

import (
	"encoding/binary"
	"math"
)

// EncodeS16LE quantizes float32 samples in [-1, 1] to 16-bit signed
// little-endian linear PCM. Samples outside the range are clipped.
func EncodeS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodeF32LE reinterprets a little-endian float32 byte stream as samples.
// Trailing bytes that do not complete a sample are dropped.
func DecodeF32LE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
