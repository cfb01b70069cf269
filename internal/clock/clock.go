// Package clock provides the tick sources that drive interstitial countdowns.
// System follows the wall clock; Virtual is advanced by hand in tests.
package clock

import (
	"context"
	"time"
)

// Clock produces time readings and tick streams.
type Clock interface {
	Now() time.Time

	// Tick delivers one value per elapsed interval until ctx is done,
	// then closes the channel. Ticks are never coalesced: a receiver that
	// falls behind still gets every intermediate tick, in order.
	Tick(ctx context.Context, interval time.Duration) <-chan time.Time
}

// System is the wall clock.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time { return time.Now() }

// Tick implements Clock. Unlike time.Ticker it does not drop ticks for slow receivers.
func (System) Tick(ctx context.Context, interval time.Duration) <-chan time.Time {
	ch := make(chan time.Time)
	if interval <= 0 {
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)

		start := time.Now()
		delivered := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			due := int(time.Since(start) / interval)
			for delivered < due {
				delivered++
				at := start.Add(time.Duration(delivered) * interval)
				select {
				case ch <- at:
				case <-ctx.Done():
					return
				}
			}

			timer.Reset(time.Until(start.Add(time.Duration(delivered+1) * interval)))
		}
	}()

	return ch
}
