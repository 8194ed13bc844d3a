package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"decoder-gateway/decode/domain"
)

type countingValidator struct {
	mu     sync.Mutex
	calls  int
	result domain.ValidationResult
	err    error
	delay  time.Duration
}

func (v *countingValidator) Validate(_ context.Context, _ string) (domain.ValidationResult, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()

	if v.delay > 0 {
		time.Sleep(v.delay)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result, v.err
}

func (v *countingValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func TestCache_HitAvoidsValidator(t *testing.T) {
	v := &countingValidator{result: domain.ValidationResult{Valid: true, SubjectID: "s1"}}
	c := NewCache(v)

	for i := 0; i < 5; i++ {
		res, err := c.GetOrValidate(context.Background(), "cred")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Valid || res.SubjectID != "s1" {
			t.Fatalf("unexpected result: %+v", res)
		}
	}

	if v.callCount() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", v.callCount())
	}
}

func TestCache_ExpiredEntryIsNeverServed(t *testing.T) {
	v := &countingValidator{result: domain.ValidationResult{Valid: true}}
	c := NewCache(v, WithTTL(5*time.Minute))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	if _, err := c.GetOrValidate(context.Background(), "cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// exatamente no expiresAt a entrada já não vale (now >= expiresAt)
	base = base.Add(5 * time.Minute)
	if _, err := c.GetOrValidate(context.Background(), "cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v.callCount() != 2 {
		t.Fatalf("expected revalidation after TTL, got %d calls", v.callCount())
	}
}

func TestCache_FreshEntryServedUntilTTL(t *testing.T) {
	v := &countingValidator{result: domain.ValidationResult{Valid: true}}
	c := NewCache(v, WithTTL(5*time.Minute))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	if _, err := c.GetOrValidate(context.Background(), "cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base = base.Add(5*time.Minute - time.Second)
	if _, err := c.GetOrValidate(context.Background(), "cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v.callCount() != 1 {
		t.Fatalf("expected fresh entry to be served, got %d calls", v.callCount())
	}
}

func TestCache_SingleFlightCollapsesConcurrentMisses(t *testing.T) {
	v := &countingValidator{
		result: domain.ValidationResult{Valid: true, SubjectID: "s1"},
		delay:  50 * time.Millisecond,
	}
	c := NewCache(v)

	const n = 20
	var wg sync.WaitGroup
	results := make([]domain.ValidationResult, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrValidate(context.Background(), "cred")
		}(i)
	}
	wg.Wait()

	if v.callCount() != 1 {
		t.Fatalf("expected exactly 1 upstream call for %d concurrent lookups, got %d", n, v.callCount())
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if !results[i].Valid || results[i].SubjectID != "s1" {
			t.Fatalf("caller %d: unexpected result: %+v", i, results[i])
		}
	}
}

func TestCache_NegativeResultCachedWithShortTTL(t *testing.T) {
	v := &countingValidator{result: domain.ValidationResult{Valid: false}}
	c := NewCache(v, WithTTL(5*time.Minute), WithNegativeTTL(time.Minute))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	// primeira chamada valida; a repetição dentro do TTL negativo não
	res, err := c.GetOrValidate(context.Background(), "bad-cred")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid {
		t.Fatalf("expected invalid result")
	}

	base = base.Add(30 * time.Second)
	if _, err := c.GetOrValidate(context.Background(), "bad-cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.callCount() != 1 {
		t.Fatalf("expected cached negative within TTL, got %d calls", v.callCount())
	}

	// depois do TTL negativo revalida
	base = base.Add(31 * time.Second)
	if _, err := c.GetOrValidate(context.Background(), "bad-cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.callCount() != 2 {
		t.Fatalf("expected revalidation after negative TTL, got %d calls", v.callCount())
	}
}

func TestCache_UnavailableIsNeverCached(t *testing.T) {
	v := &countingValidator{err: domain.ErrUpstreamUnavailable}
	c := NewCache(v)

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrValidate(context.Background(), "cred"); !domain.IsUpstreamUnavailable(err) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
	}

	if v.callCount() != 3 {
		t.Fatalf("expected every lookup to retry the upstream, got %d calls", v.callCount())
	}
	if c.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", c.Len())
	}
}

func TestCache_SweepRemovesExpiredEntries(t *testing.T) {
	v := &countingValidator{result: domain.ValidationResult{Valid: true}}
	c := NewCache(v, WithTTL(time.Minute))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	if _, err := c.GetOrValidate(context.Background(), "cred"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}

	base = base.Add(2 * time.Minute)
	c.Sweep()

	if c.Len() != 0 {
		t.Fatalf("expected sweep to remove expired entry, got %d entries", c.Len())
	}
}

func TestCache_KeysAreIndependent(t *testing.T) {
	v := &countingValidator{result: domain.ValidationResult{Valid: true}}
	c := NewCache(v)

	if _, err := c.GetOrValidate(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.GetOrValidate(context.Background(), "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v.callCount() != 2 {
		t.Fatalf("expected one call per key, got %d", v.callCount())
	}
}
