package backend

import (
	"slices"
	"sync"
)

// DefaultScrollback is how many bytes of output a terminal keeps.
const DefaultScrollback = 256 * 1024

// OutputBuffer keeps the tail of a terminal's output and fans new output
// out to subscribers. Slow subscribers miss chunks rather than block the
// session.
type OutputBuffer struct {
	mu    sync.Mutex
	data  []byte
	limit int
	subs  map[int]chan []byte
	next  int
}

// NewOutputBuffer returns a buffer keeping at most limit bytes.
func NewOutputBuffer(limit int) *OutputBuffer {
	if limit <= 0 {
		limit = DefaultScrollback
	}
	return &OutputBuffer{limit: limit, subs: make(map[int]chan []byte)}
}

// Write implements io.Writer.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := slices.Clone(p)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, chunk...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = slices.Clone(b.data[over:])
	}
	for _, ch := range b.subs {
		select {
		case ch <- chunk:
		default:
		}
	}
	return len(p), nil
}

// WriteString writes s.
func (b *OutputBuffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// Bytes returns a copy of the retained output.
func (b *OutputBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.data)
}

// String returns the retained output.
func (b *OutputBuffer) String() string {
	return string(b.Bytes())
}

// Subscribe returns the retained output and a channel of later writes.
func (b *OutputBuffer) Subscribe(depth int) ([]byte, <-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan []byte, depth)
	b.subs[id] = ch
	var once sync.Once
	return slices.Clone(b.data), ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
