package imagegen

import (
	"context"
	"errors"
	"testing"
	"time"
)

func warmingErr() error {
	return newProviderError(KindProviderWarmingUp, ProviderFailure{Stage: StageSynthesizing, Status: 503}, nil)
}

func TestRetryPolicy_DefaultIsSingleAttempt(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Enabled() {
		t.Fatal("default policy must not retry")
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return warmingErr()
	}, nil)
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryPolicy_RetriesOnlyListedKinds(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 4
	p.InitialDelay = time.Millisecond
	p.Jitter = false

	t.Run("warming is retried until success", func(t *testing.T) {
		calls := 0
		var retries []int
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return warmingErr()
			}
			return nil
		}, func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) })
		if err != nil {
			t.Fatal(err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
			t.Errorf("retries = %v", retries)
		}
	})

	t.Run("quota is not retried", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return newProviderError(KindProviderQuotaExceeded, ProviderFailure{Stage: StageSynthesizing, Status: 429}, nil)
		}, nil)
		if kindOf(t, err) != KindProviderQuotaExceeded || calls != 1 {
			t.Errorf("calls = %d, err = %v", calls, err)
		}
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return warmingErr()
		}, nil)
		if kindOf(t, err) != KindProviderWarmingUp || calls != 4 {
			t.Errorf("calls = %d, err = %v", calls, err)
		}
	})

	t.Run("plain errors are not retried", func(t *testing.T) {
		calls := 0
		_ = p.Do(context.Background(), func(context.Context) error {
			calls++
			return errors.New("plain")
		}, nil)
		if calls != 1 {
			t.Errorf("calls = %d", calls)
		}
	})
}

func TestRetryPolicy_FinalKindsIgnoreRetryOn(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 3
	p.InitialDelay = time.Millisecond
	p.RetryOn = []Kind{KindProviderQuotaExceeded, KindProviderEmptyResult, KindProviderAuthError, KindProviderBadResponse}

	for _, kind := range p.RetryOn {
		t.Run(string(kind), func(t *testing.T) {
			calls := 0
			err := p.Do(context.Background(), func(context.Context) error {
				calls++
				return newProviderError(kind, ProviderFailure{Stage: StageSynthesizing}, nil)
			}, nil)
			if kindOf(t, err) != kind || calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestRetryPolicy_StopsOnContextDone(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 5
	p.InitialDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return warmingErr()
		}, func(int, time.Duration, error) { cancel() })
	}()

	select {
	case err := <-done:
		if kindOf(t, err) != KindProviderWarmingUp {
			t.Errorf("err = %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d", calls)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}

	p.Jitter = true
	for i := 0; i < 100; i++ {
		got := p.Delay(1)
		if got < 150*time.Millisecond || got > 250*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±25%% of 200ms", got)
		}
	}
}
