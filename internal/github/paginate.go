package github

import (
	"context"
	"time"
)

// PageFunc fetches one page of a listing. It returns the page's items and the
// number of the page that follows it, or 0 when the upstream reports no next
// page (GitHub's Link header has no rel="next").
type PageFunc[T any] func(ctx context.Context, page int) (items []T, next int, err error)

// Paginate follows a paged listing from page 1 until it is exhausted and
// returns every item in upstream order.
//
// It stops on the first empty page or when the upstream stops announcing a
// next page; it never assumes a total page count. A failing fetch aborts the
// walk and its error is returned unchanged so callers can inspect it with
// errors.As. Between two fetches it waits on the throttle.
func Paginate[T any](ctx context.Context, throttle *Throttle, fetch PageFunc[T]) ([]T, error) {
	return PaginateLimit(ctx, throttle, 0, fetch)
}

// PaginateLimit is Paginate bounded to at most maxPages pages. maxPages <= 0
// means unbounded.
func PaginateLimit[T any](ctx context.Context, throttle *Throttle, maxPages int, fetch PageFunc[T]) ([]T, error) {
	var all []T

	page := 1
	for fetched := 0; maxPages <= 0 || fetched < maxPages; fetched++ {
		if fetched > 0 {
			if err := throttle.Wait(ctx); err != nil {
				return nil, err
			}
		}

		items, next, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		if next == 0 {
			break
		}
		page = next
	}

	return all, nil
}

// Throttle is a fixed delay inserted between consecutive calls of one
// sequential chain. It holds no shared state: two requests using the same
// Throttle wait independently and never block each other.
type Throttle struct {
	delay time.Duration
	after func(time.Duration) <-chan time.Time
}

// NewThrottle returns a Throttle that sleeps for delay. A zero or negative
// delay disables waiting.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{delay: delay, after: time.After}
}

// Delay reports the configured pause.
func (t *Throttle) Delay() time.Duration {
	if t == nil {
		return 0
	}
	return t.delay
}

// Wait blocks for the configured delay or until ctx is done, whichever comes
// first. It returns ctx.Err() when the context ends the wait.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.after(t.delay):
		return nil
	}
}
