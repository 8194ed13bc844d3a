package infra

import (
	"testing"
	"time"

	"decoder-gateway/decode/domain"
)

func TestBucketStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewBucketStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestBucketStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewBucketStore(0.02, 1)

	lim := s.Get(domain.Key("k"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestBucketStore_KeysAreIndependent(t *testing.T) {
	s := NewBucketStore(0.02, 1)

	if !s.Get(domain.Key("a")).Allow() {
		t.Fatalf("expected first key to be allowed")
	}
	if !s.Get(domain.Key("b")).Allow() {
		t.Fatalf("expected second key to be allowed")
	}
}

func TestBucketStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewBucketStore(10, 1, WithBucketIdleTTL(2*time.Millisecond), WithBucketCleanupEvery(0))

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
