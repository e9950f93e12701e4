package sshrelay

import (
	"sync"
	"unicode/utf8"
)

// DefaultBufferSize caps the terminal output kept per session.
const DefaultBufferSize = 256 << 10

// Buffer is an append-only text log that keeps at most max bytes, dropping
// the oldest output first. It never starts in the middle of a UTF-8 sequence.
type Buffer struct {
	mu      sync.Mutex
	max     int
	data    []byte
	dropped int64
}

// NewBuffer returns a buffer capped at max bytes; max <= 0 uses DefaultBufferSize.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &Buffer{max: max}
}

// WriteString appends s.
func (b *Buffer) WriteString(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, s...)
	if over := len(b.data) - b.max; over > 0 {
		for over < len(b.data) && !utf8.RuneStart(b.data[over]) {
			over++
		}
		b.dropped += int64(over)
		b.data = append([]byte(nil), b.data[over:]...)
	}
}

// String returns the retained output.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Len is the number of retained bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Dropped is the number of bytes evicted so far.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Since returns the output written after the absolute offset, counting
// evicted bytes, and the offset of the end. Output evicted before it was
// read is skipped.
func (b *Buffer) Since(offset int64) (string, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := b.dropped + int64(len(b.data))
	if offset < b.dropped {
		offset = b.dropped
	}
	if offset >= end {
		return "", end
	}
	return string(b.data[offset-b.dropped:]), end
}
