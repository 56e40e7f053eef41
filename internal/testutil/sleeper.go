package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records requested pauses without waiting.
// It still honours context cancellation.
type FakeSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses = append(s.pauses, d)
	return nil
}

// Pauses returns every requested duration in order
func (s *FakeSleeper) Pauses() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}
