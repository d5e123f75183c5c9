package motion

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// Handler owns the motion slot: a binary token held by whichever motion is
// allowed to command the drivetrain.
type Handler struct {
	slot     *semaphore.Weighted
	inMotion *atomic.Bool

	mu   sync.Mutex
	done chan struct{}
	seq  uint64
}

func NewHandler() *Handler {
	done := make(chan struct{})
	close(done)
	return &Handler{
		slot:     semaphore.NewWeighted(1),
		inMotion: atomic.NewBool(false),
		done:     done,
	}
}

// Acquire waits until no other motion holds the slot, takes it and marks a
// motion in progress. It returns the new motion's sequence number.
func (h *Handler) Acquire(ctx context.Context) (uint64, error) {
	if err := h.slot.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.done = make(chan struct{})
	h.mu.Unlock()
	h.inMotion.Store(true)
	return seq, nil
}

// End clears the in-motion flag, wakes waiters and releases the slot. Only the
// slot holder may call it, once per Acquire.
func (h *Handler) End() {
	h.inMotion.Store(false)
	h.mu.Lock()
	close(h.done)
	h.mu.Unlock()
	h.slot.Release(1)
}

// Cancel asks the running motion to stop. The loop observes it at the top of
// its next tick and then calls End.
func (h *Handler) Cancel() {
	h.inMotion.Store(false)
}

func (h *Handler) IsInMotion() bool {
	return h.inMotion.Load()
}

// Wait blocks until the motion holding the slot when Wait was called has
// ended.
func (h *Handler) Wait(ctx context.Context) error {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) Sequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}
