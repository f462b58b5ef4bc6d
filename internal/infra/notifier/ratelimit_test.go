package notifier

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("TC-1: should allow request within rate limit", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(10, 5, 10, 5)

		// Act
		err := limiter.Wait(context.Background(), "chat")

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should block a second request to the same destination", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(100, 10, 1, 1)
		if err := limiter.Wait(context.Background(), "chat"); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		// Act
		err := limiter.Wait(ctx, "chat")

		// Assert
		if err == nil {
			t.Error("expected second request to be rate limited")
		}
	})

	t.Run("TC-3: should not block other destinations", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(100, 10, 1, 1)
		if err := limiter.Wait(context.Background(), "chat-a"); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		// Act
		err := limiter.Wait(ctx, "chat-b")

		// Assert
		if err != nil {
			t.Errorf("expected chat-b to have its own bucket, got %v", err)
		}
	})

	t.Run("TC-4: should apply the global bucket across destinations", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(1, 1, 100, 10)
		if err := limiter.Wait(context.Background(), "chat-a"); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		// Act
		err := limiter.Wait(ctx, "chat-b")

		// Assert
		if err == nil {
			t.Error("expected global limit to apply")
		}
	})

	t.Run("TC-5: should respect context cancellation", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(1, 1, 1, 1)
		if err := limiter.Wait(context.Background(), "chat"); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())

		errChan := make(chan error, 1)
		go func() {
			errChan <- limiter.Wait(ctx, "chat")
		}()

		// Act
		time.Sleep(50 * time.Millisecond)
		cancel()
		err := <-errChan

		// Assert
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context canceled, got %v", err)
		}
	})
}
