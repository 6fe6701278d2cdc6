package app

import (
	"sync"

	"quiz-attempt-service/internal/domain"
)

// ProgressHub fans attempt-progress snapshots out to in-process subscribers
// (the websocket feed). It carries no authority over scoring state: the
// store remains the source of truth, the hub only mirrors what the
// coordinator already committed.
type ProgressHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.AttemptProgress]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subscribers: make(map[string]map[chan domain.AttemptProgress]struct{}),
	}
}

// Subscribe returns a channel receiving progress updates for one attempt.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *ProgressHub) Subscribe(attemptID string) (<-chan domain.AttemptProgress, func()) {
	ch := make(chan domain.AttemptProgress, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[attemptID]
	if !ok {
		subs = make(map[chan domain.AttemptProgress]struct{})
		h.subscribers[attemptID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[attemptID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subscribers, attemptID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber of the attempt. Slow
// subscribers get their stale pending update replaced rather than blocking
// the publisher.
func (h *ProgressHub) Publish(progress domain.AttemptProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[progress.AttemptID] {
		select {
		case ch <- progress:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- progress
		}
	}
}
