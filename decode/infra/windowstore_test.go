package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"decoder-gateway/decode/domain"
)

func minuteTier(limit int) []domain.Tier {
	return []domain.Tier{{Name: "minute", Limit: limit, Window: time.Minute}}
}

func TestWindowStore_RejectsAboveLimitWithinWindow(t *testing.T) {
	s := NewWindowStore()
	base := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	s.now = func() time.Time { return base }

	tiers := minuteTier(10)
	for i := 0; i < 10; i++ {
		dec, err := s.Take(context.Background(), "k", tiers)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	// a 11ª na mesma janela bloqueia
	dec, err := s.Take(context.Background(), "k", tiers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("11th request should be rejected")
	}
	if dec.Tier != "minute" {
		t.Fatalf("expected minute tier to block, got %q", dec.Tier)
	}
	// janela começou em 12:00:00, agora é 12:00:10 => faltam 50s
	if dec.RetryAfter != 50*time.Second {
		t.Fatalf("expected RetryAfter=50s, got %s", dec.RetryAfter)
	}
}

func TestWindowStore_WindowResetAdmitsAgain(t *testing.T) {
	s := NewWindowStore()
	base := time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)
	s.now = func() time.Time { return base }

	tiers := minuteTier(1)
	if dec, _ := s.Take(context.Background(), "k", tiers); !dec.Allowed {
		t.Fatalf("first request should be allowed")
	}
	if dec, _ := s.Take(context.Background(), "k", tiers); dec.Allowed {
		t.Fatalf("second request in same window should be rejected")
	}

	// vira a janela
	base = base.Add(40 * time.Second)
	if dec, _ := s.Take(context.Background(), "k", tiers); !dec.Allowed {
		t.Fatalf("request in new window should be allowed")
	}
}

func TestWindowStore_RejectionDoesNotConsumeOtherTiers(t *testing.T) {
	s := NewWindowStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	tiers := []domain.Tier{
		{Name: "minute", Limit: 1, Window: time.Minute},
		{Name: "hour", Limit: 2, Window: time.Hour},
	}

	if dec, _ := s.Take(context.Background(), "k", tiers); !dec.Allowed {
		t.Fatalf("first request should be allowed")
	}
	// bloqueada pelo minute; não pode gastar o hour
	if dec, _ := s.Take(context.Background(), "k", tiers); dec.Allowed {
		t.Fatalf("second request should be rejected by minute tier")
	}

	// nova janela de minuto: o hour ainda tem 1 de capacidade sobrando
	base = base.Add(time.Minute)
	if dec, _ := s.Take(context.Background(), "k", tiers); !dec.Allowed {
		t.Fatalf("request in new minute window should be allowed")
	}

	base = base.Add(time.Minute)
	dec, _ := s.Take(context.Background(), "k", tiers)
	if dec.Allowed {
		t.Fatalf("hour tier should now be exhausted")
	}
	if dec.Tier != "hour" {
		t.Fatalf("expected hour tier to block, got %q", dec.Tier)
	}
}

func TestWindowStore_ReportsTightestBindingTier(t *testing.T) {
	s := NewWindowStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	// ambos os tiers com limite 1: os dois esgotam juntos e o RetryAfter
	// deve ser o da janela mais longa
	tiers := []domain.Tier{
		{Name: "minute", Limit: 1, Window: time.Minute},
		{Name: "hour", Limit: 1, Window: time.Hour},
	}

	if dec, _ := s.Take(context.Background(), "k", tiers); !dec.Allowed {
		t.Fatalf("first request should be allowed")
	}

	dec, _ := s.Take(context.Background(), "k", tiers)
	if dec.Allowed {
		t.Fatalf("second request should be rejected")
	}
	if dec.Tier != "hour" {
		t.Fatalf("expected hour to be the binding tier, got %q", dec.Tier)
	}
	if dec.RetryAfter != time.Hour {
		t.Fatalf("expected RetryAfter=1h, got %s", dec.RetryAfter)
	}
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	s := NewWindowStore()
	tiers := minuteTier(1)

	if dec, _ := s.Take(context.Background(), "a", tiers); !dec.Allowed {
		t.Fatalf("first key should be allowed")
	}
	if dec, _ := s.Take(context.Background(), "b", tiers); !dec.Allowed {
		t.Fatalf("second key should be allowed")
	}
	if dec, _ := s.Take(context.Background(), "a", tiers); dec.Allowed {
		t.Fatalf("first key should now be rejected")
	}
}

func TestWindowStore_ConcurrentTakesNeverExceedLimit(t *testing.T) {
	s := NewWindowStore()
	base := time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)
	s.now = func() time.Time { return base }
	tiers := minuteTier(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := s.Take(context.Background(), "k", tiers)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if dec.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Fatalf("expected exactly 10 admitted requests, got %d", allowed)
	}
}

func TestWindowStore_CleanupRemovesIdleKeys(t *testing.T) {
	s := NewWindowStore(WithIdleTTL(time.Minute), WithCleanupEvery(0))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	tiers := minuteTier(1)
	if dec, _ := s.Take(context.Background(), "k", tiers); !dec.Allowed {
		t.Fatalf("first request should be allowed")
	}

	base = base.Add(2 * time.Minute)
	s.Cleanup()

	s.mu.Lock()
	_, ok := s.entries["k"]
	s.mu.Unlock()
	if ok {
		t.Fatalf("expected idle key to be removed")
	}
}
