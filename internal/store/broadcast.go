package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Broadcaster fans Change events out to subscribers. A slow subscriber
// misses events once its buffer is full; since every change triggers a full
// reload, the pending ones already cover it.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Change]struct{}
	closed bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Change]struct{})}
}

// Subscribe registers a subscriber until ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	ch := make(chan Change, subscriberBuffer)
	b.subs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()
	return ch, nil
}

// Publish delivers c to every subscriber without blocking.
func (b *Broadcaster) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Close closes every subscriber channel and rejects new subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

func (b *Broadcaster) remove(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		close(ch)
		delete(b.subs, ch)
	}
}
