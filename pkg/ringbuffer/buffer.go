// Package ringbuffer implements the rolling PCM window used by the audio
// ingest path: a fixed-capacity circular buffer that a single capture
// thread writes into and that any number of readers can snapshot from
// without ever observing a torn sample.
package ringbuffer

import "sync"

// Buffer is a fixed-capacity circular window over 16-bit PCM samples.
// Write is single-producer; Snapshot/SnapshotLast may be called from any
// number of goroutines concurrently with Write and with each other.
//
// The implementation favors a short critical section over a lock-free
// SPSC design (spec.md §4.1 permits either) — every Write and Snapshot
// call holds mu for the duration of its sample copy and index update, and
// for nothing else.
type Buffer struct {
	mu       sync.Mutex
	data     []int16
	capacity int
	write    int  // next index to write
	filled   bool // true once the buffer has wrapped at least once
	total    int  // total samples ever written (for size accounting)
}

// New creates a Buffer holding at most capacity samples (capacity = D*S,
// duration-in-seconds * sample-rate).
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		data:     make([]int16, capacity),
		capacity: capacity,
	}
}

// Write appends samples, overwriting the oldest data once the buffer is
// full. Never blocks, never reallocates, never fails. If samples is
// larger than the buffer's capacity, only the trailing capacity samples
// are kept.
func (b *Buffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}
	if len(samples) > b.capacity {
		samples = samples[len(samples)-b.capacity:]
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(b.data[b.write:], samples)
	remaining := samples[n:]
	if len(remaining) > 0 {
		copy(b.data, remaining)
		b.filled = true
	}
	b.write = (b.write + len(samples)) % b.capacity
	b.total += len(samples)
	if b.total >= b.capacity {
		b.filled = true
	}
}

// Len reports how many valid samples are currently buffered (<= capacity).
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.len()
}

func (b *Buffer) len() int {
	if b.filled {
		return b.capacity
	}
	return b.write
}

// Snapshot returns a newly owned copy of all currently buffered samples in
// chronological order. Always <= capacity samples. Returns an empty slice
// (never nil-panics on use) when nothing has been written yet.
func (b *Buffer) Snapshot() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLastLocked(b.len())
}

// SnapshotLast returns the most recent n samples (or fewer if the buffer
// doesn't hold that many yet).
func (b *Buffer) SnapshotLast(n int) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.len() {
		n = b.len()
	}
	return b.snapshotLastLocked(n)
}

// snapshotLastLocked must be called with b.mu held. It copies the last n
// samples (n <= current length) in write order.
func (b *Buffer) snapshotLastLocked(n int) []int16 {
	out := make([]int16, n)
	if n == 0 {
		return out
	}
	start := (b.write - n + b.capacity) % b.capacity
	if start+n <= b.capacity {
		copy(out, b.data[start:start+n])
	} else {
		first := b.capacity - start
		copy(out, b.data[start:])
		copy(out[first:], b.data[:n-first])
	}
	return out
}

// Capacity returns the configured maximum sample count.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Downmix converts interleaved multi-channel 16-bit samples to mono by
// averaging channels. channels == 1 returns samples unchanged.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 || len(samples) == 0 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}
