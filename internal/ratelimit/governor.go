// Package ratelimit bounds outbound request rate and per-model concurrency.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Governor enforces two limits at once: a global ceiling of N requests per
// rolling window across all models, and a per-model cap of K simultaneous
// in-flight calls. Acquire blocks until both are satisfiable.
type Governor struct {
	globalLimit int
	perModel    int
	window      time.Duration

	mu    sync.Mutex
	sent  []time.Time
	slots map[string]chan struct{}

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a governor with a 60-second rolling window.
func New(globalPerMinute, perModelConcurrency int) *Governor {
	if globalPerMinute < 1 {
		globalPerMinute = 1
	}
	if perModelConcurrency < 1 {
		perModelConcurrency = 1
	}
	return &Governor{
		globalLimit: globalPerMinute,
		perModel:    perModelConcurrency,
		window:      time.Minute,
		slots:       make(map[string]chan struct{}),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire reserves a per-model slot and a send timestamp in the global
// window, blocking as needed. The returned release func frees the per-model
// slot; the timestamp stays in the window and ages out naturally, which is
// what bounds the rate rather than just the concurrency. Release is safe to
// call more than once.
func (g *Governor) Acquire(ctx context.Context, model string) (func(), error) {
	slot := g.modelSlot(model)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := g.waitGlobal(ctx); err != nil {
		<-slot
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { <-slot }) }, nil
}

// InFlight reports the number of calls currently holding a slot for model.
func (g *Governor) InFlight(model string) int {
	g.mu.Lock()
	slot, ok := g.slots[model]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	return len(slot)
}

func (g *Governor) modelSlot(model string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot, ok := g.slots[model]
	if !ok {
		slot = make(chan struct{}, g.perModel)
		g.slots[model] = slot
	}
	return slot
}

// waitGlobal admits the caller into the sliding window, sleeping until the
// oldest timestamp ages out when the window is full. Waiters wake roughly in
// the order their timestamps free up, which keeps admission starvation-free.
func (g *Governor) waitGlobal(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()
		cutoff := now.Add(-g.window)
		i := 0
		for i < len(g.sent) && !g.sent[i].After(cutoff) {
			i++
		}
		g.sent = g.sent[i:]
		if len(g.sent) < g.globalLimit {
			g.sent = append(g.sent, now)
			g.mu.Unlock()
			return nil
		}
		wait := g.sent[0].Add(g.window).Sub(now)
		g.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
