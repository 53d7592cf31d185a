// Package chunk accumulates captured audio blocks in arrival order.
package chunk

import "sync"

// Buffer is an ordered, concurrency-safe block accumulator.
type Buffer struct {
	mu     sync.Mutex
	blocks [][]byte
	size   int
}

// Append stores block at the tail. Empty blocks are ignored.
func (b *Buffer) Append(block []byte) {
	if len(block) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks = append(b.blocks, block)
	b.size += len(block)
}

// TotalSize reports the byte count across all buffered blocks.
func (b *Buffer) TotalSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Len reports the number of buffered blocks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blocks)
}

// Drain returns every block in arrival order and empties the buffer.
func (b *Buffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocks := b.blocks
	b.blocks = nil
	b.size = 0
	return blocks
}

// Join concatenates drained blocks into one payload.
func Join(blocks [][]byte) []byte {
	total := 0
	for _, block := range blocks {
		total += len(block)
	}
	out := make([]byte, 0, total)
	for _, block := range blocks {
		out = append(out, block...)
	}
	return out
}
