package ringbuffer

import "testing"

func seq(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i + 1)
	}
	return s
}

func TestEmptySnapshot(t *testing.T) {
	b := New(10)
	if got := b.Snapshot(); len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %v", got)
	}
}

// P1 (buffer bound): after any sequence of writes totaling B samples,
// snapshot().len() == min(B, capacity).
func TestBufferBound(t *testing.T) {
	b := New(10)
	b.Write(seq(4))
	if got := len(b.Snapshot()); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	b.Write(seq(20))
	if got := len(b.Snapshot()); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

// P2 (buffer order): snapshot() is a contiguous suffix of the
// concatenation of all writes, possibly truncated from the front.
func TestBufferOrderIsSuffix(t *testing.T) {
	b := New(5)
	b.Write([]int16{1, 2, 3})
	b.Write([]int16{4, 5, 6, 7})
	got := b.Snapshot()
	want := []int16{3, 4, 5, 6, 7}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWriteLargerThanCapacityKeepsTail(t *testing.T) {
	b := New(3)
	b.Write(seq(10))
	got := b.Snapshot()
	want := []int16{8, 9, 10}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSnapshotLast(t *testing.T) {
	b := New(10)
	b.Write(seq(10))
	got := b.SnapshotLast(3)
	want := []int16{8, 9, 10}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := b.SnapshotLast(100); len(got) != 10 {
		t.Fatalf("expected capped at buffer length, got %d", len(got))
	}
}

func TestDownmixStereo(t *testing.T) {
	stereo := []int16{10, 20, 30, 40}
	mono := Downmix(stereo, 2)
	want := []int16{15, 35}
	if !equal(mono, want) {
		t.Fatalf("got %v want %v", mono, want)
	}
}

func TestDownmixMonoIsNoop(t *testing.T) {
	mono := []int16{1, 2, 3}
	if got := Downmix(mono, 1); !equal(got, mono) {
		t.Fatalf("expected no-op, got %v", got)
	}
}

func equal(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
