package audio

// DefaultFrameSamples is the fixed capture block size in samples
const DefaultFrameSamples = 2048

// Framer accumulates incoming samples and emits fixed-size frames.
// It is not safe for concurrent use; the capture device callback is the
// only producer.
type Framer struct {
	size int
	buf  []float32
}

// NewFramer creates a framer emitting frames of size samples
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultFrameSamples
	}
	return &Framer{
		size: size,
		buf:  make([]float32, 0, size),
	}
}

// Push appends samples and invokes emit once per completed frame,
// in order. The emitted slice is only valid for the duration of the call.
func (f *Framer) Push(samples []float32, emit func(frame []float32)) {
	f.buf = append(f.buf, samples...)
	for len(f.buf) >= f.size {
		emit(f.buf[:f.size])
		f.buf = f.buf[f.size:]
	}
}

// Pending returns the number of buffered samples not yet emitted
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards any partially accumulated frame
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
