package service

import (
	"context"
	"sync"
)

// hub fans values out to subscribers. Each subscriber has a small buffer; when
// it is full the oldest pending value is dropped, so a slow reader always ends
// up with the most recent value instead of blocking the publisher.
type hub[T any] struct {
	mu     sync.Mutex
	buffer int
	subs   map[chan T]struct{}
}

func newHub[T any](buffer int) *hub[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &hub[T]{buffer: buffer, subs: make(map[chan T]struct{})}
}

// Subscribe registers a subscriber that first receives initial and then every
// published value. The channel is closed once ctx is done.
func (h *hub[T]) Subscribe(ctx context.Context, initial ...T) <-chan T {
	ch := make(chan T, h.buffer)

	h.mu.Lock()
	for _, v := range initial {
		h.offer(ch, v)
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

func (h *hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		h.offer(ch, v)
	}
}

func (h *hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// offer must be called with mu held; only the holder sends, so after dropping
// one value the second send cannot block.
func (h *hub[T]) offer(ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
