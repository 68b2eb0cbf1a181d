package postgres

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryCallSucceedsAfterFailures(t *testing.T) {
	calls := 0
	r := retrier{attempts: 3, base: time.Millisecond}
	got, err := retryCall(context.Background(), r, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("refused")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestRetryCallReturnsLastError(t *testing.T) {
	calls := 0
	r := retrier{attempts: 2, base: time.Millisecond}
	_, err := retryCall(context.Background(), r, func() (int, error) {
		calls++
		return 0, errors.New("refused")
	})
	if err == nil || err.Error() != "refused" {
		t.Errorf("err = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryCallDefaultsToOneAttempt(t *testing.T) {
	calls := 0
	_, _ = retryCall(context.Background(), retrier{}, func() (int, error) {
		calls++
		return 0, errors.New("refused")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryCallStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := retrier{attempts: 5, base: time.Hour}
	_, err := retryCall(ctx, r, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 4; i++ {
		exp := base * (1 << i)
		for range 20 {
			d := backoff(base, i)
			if d < exp || d > exp+exp/2 {
				t.Fatalf("backoff(%v, %d) = %v, want [%v, %v]", base, i, d, exp, exp+exp/2)
			}
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	cases := []struct {
		base time.Duration
		i    int
	}{
		{time.Second, 100},
		{time.Second, 63},
		{time.Hour, 5},
		{time.Second, 10},
	}
	for _, tc := range cases {
		if d := backoff(tc.base, tc.i); d <= 0 || d > maxBackoff {
			t.Errorf("backoff(%v, %d) = %v, want in (0, %v]", tc.base, tc.i, d, maxBackoff)
		}
	}
}
