package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if attempts != 2 || calls != 2 {
		t.Errorf("attempts = %d, calls = %d, want 2/2", attempts, calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	attempts, err := Retry(context.Background(), fastRetry(2), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, 应包装最后一次错误", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_NotRetryable(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryIf = func(error) bool { return false }

	calls := 0
	attempts, _ := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	if calls != 1 || attempts != 1 {
		t.Errorf("不可重试错误应只调用一次, calls = %d", calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, fastRetry(3), func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("已取消的 context 不应调用 fn, calls = %d", calls)
	}
}
