package clock

import (
	"context"
	"sync"
	"time"
)

// Virtual is a manually advanced clock for deterministic tests.
// Time only moves when Advance is called.
type Virtual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	tickers map[*virtualTicker]struct{}
}

type virtualTicker struct {
	ctx      context.Context
	ch       chan time.Time
	interval time.Duration
	next     time.Time
}

// NewVirtual creates a virtual clock reading start.
func NewVirtual(start time.Time) *Virtual {
	v := &Virtual{
		now:     start,
		tickers: make(map[*virtualTicker]struct{}),
	}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Tick implements Clock.
func (v *Virtual) Tick(ctx context.Context, interval time.Duration) <-chan time.Time {
	ch := make(chan time.Time)
	if interval <= 0 {
		close(ch)
		return ch
	}

	v.mu.Lock()
	t := &virtualTicker{
		ctx:      ctx,
		ch:       ch,
		interval: interval,
		next:     v.now.Add(interval),
	}
	v.tickers[t] = struct{}{}
	v.cond.Broadcast()
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		// Advance holds mu while handing off a tick, so the close cannot race a send.
		v.mu.Lock()
		delete(v.tickers, t)
		close(ch)
		v.cond.Broadcast()
		v.mu.Unlock()
	}()

	return ch
}

// Advance moves time forward by d, handing every tick that falls due to its
// receiver one at a time. It returns once all of them have been received.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	target := v.now.Add(d)
	for {
		t := v.earliestDue(target)
		if t == nil {
			break
		}
		v.now = t.next
		t.next = t.next.Add(t.interval)

		select {
		case t.ch <- v.now:
		case <-t.ctx.Done():
			delete(v.tickers, t)
		}
	}
	v.now = target
}

// Tickers reports how many tick streams are live.
func (v *Virtual) Tickers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.tickers)
}

// BlockUntil waits until exactly n tick streams are live or ctx is done.
func (v *Virtual) BlockUntil(ctx context.Context, n int) error {
	stop := context.AfterFunc(ctx, func() {
		v.mu.Lock()
		v.cond.Broadcast()
		v.mu.Unlock()
	})
	defer stop()

	v.mu.Lock()
	defer v.mu.Unlock()
	for len(v.tickers) != n {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.cond.Wait()
	}
	return nil
}

func (v *Virtual) earliestDue(target time.Time) *virtualTicker {
	var best *virtualTicker
	for t := range v.tickers {
		if t.ctx.Err() != nil || t.next.After(target) {
			continue
		}
		if best == nil || t.next.Before(best.next) {
			best = t
		}
	}
	return best
}
