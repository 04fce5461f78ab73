package drift

import (
	"sync"

	"github.com/rickgao/kalshi-trader/internal/model"
)

// sampleBuffer is a thread-safe unbounded queue between sample producers
// (stream reader, REST sampler) and the monitor's consume loop. It grows by
// doubling when it reaches 70% full so a slow database flush never drops
// quotes.
type sampleBuffer struct {
	mu       sync.Mutex
	buf      []model.ProbabilitySample
	head     int
	tail     int
	count    int
	capacity int
	closed   bool
}

func newSampleBuffer(initialCapacity int) *sampleBuffer {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &sampleBuffer{
		buf:      make([]model.ProbabilitySample, initialCapacity),
		capacity: initialCapacity,
	}
}

// push enqueues a sample. Returns false once the buffer is closed.
func (b *sampleBuffer) push(s model.ProbabilitySample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = s
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	return true
}

// tryPop dequeues one sample without blocking.
func (b *sampleBuffer) tryPop() (model.ProbabilitySample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return model.ProbabilitySample{}, false
	}

	s := b.buf[b.head]
	b.buf[b.head] = model.ProbabilitySample{}
	b.head = (b.head + 1) % b.capacity
	b.count--
	return s, true
}

func (b *sampleBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *sampleBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// grow doubles capacity, re-laying items out from head.
func (b *sampleBuffer) grow() {
	newCap := b.capacity * 2
	newBuf := make([]model.ProbabilitySample, newCap)
	for i := 0; i < b.count; i++ {
		newBuf[i] = b.buf[(b.head+i)%b.capacity]
	}
	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCap
}
