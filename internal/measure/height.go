package measure

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HeightBuffer is a bounded FIFO of raw height estimates in pixels. When a
// sample is pushed at capacity the oldest sample is evicted.
type HeightBuffer struct {
	samples []float64 // ring storage
	start   int       // index of the oldest sample
	n       int
}

// NewHeightBuffer returns an empty buffer holding at most capacity samples.
// Capacities below one are raised to one.
func NewHeightBuffer(capacity int) *HeightBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &HeightBuffer{samples: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest one at capacity. NaN and
// infinite samples are ignored.
func (b *HeightBuffer) Push(v float64) {
	if !finite(v) {
		return
	}
	c := len(b.samples)
	if b.n < c {
		b.samples[(b.start+b.n)%c] = v
		b.n++
		return
	}
	b.samples[b.start] = v
	b.start = (b.start + 1) % c
}

// Len returns the number of buffered samples.
func (b *HeightBuffer) Len() int { return b.n }

// Cap returns the buffer capacity.
func (b *HeightBuffer) Cap() int { return len(b.samples) }

// Samples returns a copy of the buffered samples, oldest first.
func (b *HeightBuffer) Samples() []float64 {
	out := make([]float64, b.n)
	for i := range out {
		out[i] = b.samples[(b.start+i)%len(b.samples)]
	}
	return out
}

// Mean returns the arithmetic mean of the buffered samples, or false when
// the buffer is empty.
func (b *HeightBuffer) Mean() (float64, bool) {
	if b.n == 0 {
		return 0, false
	}
	samples := b.Samples()
	if m := stat.Mean(samples, nil); !math.IsInf(m, 0) {
		return m, true
	}
	// The plain sum overflowed; average pre-scaled samples instead.
	var m float64
	for _, v := range samples {
		m += v / float64(len(samples))
	}
	return m, !math.IsInf(m, 0)
}

// Reset discards all samples.
func (b *HeightBuffer) Reset() {
	b.start = 0
	b.n = 0
}
