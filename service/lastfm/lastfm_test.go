package lastfm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// testService builds a client whose limiter never delays, so pool behavior
// can be exercised without six-second waits between calls.
func testService(t *testing.T, apiKey string) *Service {
	t.Helper()
	s := New(apiKey, "secret", log.New(io.Discard))
	s.limiter = rate.NewLimiter(rate.Inf, 1)
	return s
}

func TestUnavailableWithoutKey(t *testing.T) {
	s := testService(t, "")

	if s.IsAvailable() {
		t.Fatal("service with no API key reports available")
	}

	ctx := context.Background()
	if got := s.SimilarArtists(ctx, "Autechre", 5); got != nil {
		t.Fatalf("SimilarArtists on unavailable service = %v, want nil", got)
	}
	if got := s.Info(ctx, "Autechre"); got != nil {
		t.Fatalf("Info on unavailable service = %v, want nil", got)
	}
	if got := s.TopAlbums(ctx, "Autechre", 5); got != nil {
		t.Fatalf("TopAlbums on unavailable service = %v, want nil", got)
	}
	if got := s.TagTopArtists(ctx, "idm", 5); got != nil {
		t.Fatalf("TagTopArtists on unavailable service = %v, want nil", got)
	}
}

func TestCallReportsFunctionOutcome(t *testing.T) {
	s := testService(t, "key")

	if !s.call(context.Background(), "ok", func() error { return nil }) {
		t.Fatal("call returned false for a successful function")
	}
	if s.call(context.Background(), "fail", func() error { return errors.New("api error") }) {
		t.Fatal("call returned true for a failing function")
	}
}

func TestCallSkipsFunctionOnCancelledContext(t *testing.T) {
	s := testService(t, "key")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	if s.call(ctx, "cancelled", func() error { ran = true; return nil }) {
		t.Fatal("call returned true under a cancelled context")
	}
	if ran {
		t.Fatal("function ran despite the cancelled context")
	}
}

func TestCallAbandonsBlockedFunction(t *testing.T) {
	s := testService(t, "key")

	release := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if s.call(ctx, "stuck", func() error { <-release; return nil }) {
		t.Fatal("call returned true for a call that never finished")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("call blocked for %v after its context expired", elapsed)
	}

	// The abandoned goroutine must still give its slot back once the
	// library call returns.
	close(release)
	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acquireCancel()
	if err := s.sem.Acquire(acquireCtx, maxInflight); err != nil {
		t.Fatalf("pool slot was never released: %v", err)
	}
	s.sem.Release(maxInflight)
}

func TestCallBoundsInflightCalls(t *testing.T) {
	s := testService(t, "key")

	started := make(chan struct{}, maxInflight)
	release := make(chan struct{})
	results := make(chan bool, maxInflight)
	for i := 0; i < maxInflight; i++ {
		go func() {
			results <- s.call(context.Background(), "blocked", func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	for i := 0; i < maxInflight; i++ {
		<-started
	}

	// Every slot is held, so one more call has to wait and times out.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if s.call(ctx, "overflow", func() error { return nil }) {
		t.Fatal("call got a pool slot while all slots were held")
	}

	close(release)
	for i := 0; i < maxInflight; i++ {
		if !<-results {
			t.Fatal("pooled call failed after release")
		}
	}
}
