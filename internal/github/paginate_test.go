package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedFetch serves items in pages of pageSize and counts how often it is
// called. The "next" cursor is the following page number, or 0 after the
// last non-empty page, which is how go-github reports a missing rel="next".
func pagedFetch(items []int, pageSize int, calls *int) PageFunc[int] {
	return func(_ context.Context, page int) ([]int, int, error) {
		*calls++
		start := (page - 1) * pageSize
		if start >= len(items) {
			return nil, 0, nil
		}
		end := min(start+pageSize, len(items))
		next := 0
		if end < len(items) {
			next = page + 1
		}
		return items[start:end], next, nil
	}
}

func sequence(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func TestPaginate_Completeness(t *testing.T) {
	const pageSize = 4

	tests := []struct {
		name      string
		n         int
		wantCalls int
	}{
		{name: "empty listing", n: 0, wantCalls: 1},
		{name: "single item", n: 1, wantCalls: 1},
		{name: "exactly one full page", n: pageSize, wantCalls: 1},
		{name: "one item spills to a second page", n: pageSize + 1, wantCalls: 2},
		{name: "three full pages", n: 3 * pageSize, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Paginate(context.Background(), nil, pagedFetch(sequence(tt.n), pageSize, &calls))
			require.NoError(t, err)

			assert.Len(t, got, tt.n)
			for i, v := range got {
				assert.Equal(t, i, v, "items must keep upstream order")
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestPaginate_StopsOnEmptyPageEvenIfNextAdvertised(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, page int) ([]string, int, error) {
		calls++
		if page == 1 {
			return []string{"a", "b"}, 2, nil
		}
		// An upstream that keeps advertising pages but has nothing left.
		return []string{}, page + 1, nil
	}

	got, err := Paginate(context.Background(), nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, calls)
}

func TestPaginate_FollowsCursor(t *testing.T) {
	var requested []int
	fetch := func(_ context.Context, page int) ([]int, int, error) {
		requested = append(requested, page)
		switch page {
		case 1:
			return []int{1}, 5, nil
		case 5:
			return []int{5}, 9, nil
		default:
			return []int{page}, 0, nil
		}
	}

	got, err := Paginate(context.Background(), nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, got)
	assert.Equal(t, []int{1, 5, 9}, requested)
}

func TestPaginate_PropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, page int) ([]int, int, error) {
		if page == 2 {
			return nil, 0, boom
		}
		return []int{page}, page + 1, nil
	}

	got, err := Paginate(context.Background(), nil, fetch)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestPaginateLimit_BoundsPages(t *testing.T) {
	calls := 0
	got, err := PaginateLimit(context.Background(), nil, 2, pagedFetch(sequence(10), 3, &calls))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
	assert.Equal(t, 2, calls)
}

// =========================================================================
// THROTTLE
// =========================================================================

// recordingAfter replaces time.After: it records requested delays and fires
// immediately so tests never sleep.
func recordingAfter(delays *[]time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		*delays = append(*delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
}

func TestPaginate_WaitsBetweenPagesOnly(t *testing.T) {
	var delays []time.Duration
	throttle := &Throttle{delay: 100 * time.Millisecond, after: recordingAfter(&delays)}

	calls := 0
	_, err := Paginate(context.Background(), throttle, pagedFetch(sequence(9), 3, &calls))
	require.NoError(t, err)

	// Three pages → two pauses, none before the first fetch.
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, delays)
}

func TestThrottle_ZeroDelayDoesNotWait(t *testing.T) {
	var delays []time.Duration
	throttle := &Throttle{delay: 0, after: recordingAfter(&delays)}

	require.NoError(t, throttle.Wait(context.Background()))
	assert.Empty(t, delays)
}

func TestThrottle_NilIsUsable(t *testing.T) {
	var throttle *Throttle
	assert.NoError(t, throttle.Wait(context.Background()))
	assert.Equal(t, time.Duration(0), throttle.Delay())
}

func TestThrottle_CanceledContext(t *testing.T) {
	never := func(time.Duration) <-chan time.Time { return make(chan time.Time) }
	throttle := &Throttle{delay: time.Hour, after: never}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, throttle.Wait(ctx), context.Canceled)
}

func TestPaginate_CanceledDuringWait(t *testing.T) {
	never := func(time.Duration) <-chan time.Time { return make(chan time.Time) }
	throttle := &Throttle{delay: time.Hour, after: never}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context, page int) ([]int, int, error) {
		calls++
		cancel()
		return []int{page}, page + 1, nil
	}

	_, err := Paginate(ctx, throttle, fetch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
