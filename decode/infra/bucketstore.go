package infra

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"decoder-gateway/decode/domain"
)

// BucketStore guarda um token bucket (x/time/rate) por chave. É o limiter
// frouxo dos endpoints fora do fluxo de decode (validate-token, GET /api),
// onde não há necessidade de tiers diário/horário.
type BucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry

	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketStoreOption func(*BucketStore)

func WithBucketIdleTTL(d time.Duration) BucketStoreOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithBucketCleanupEvery(d time.Duration) BucketStoreOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

func NewBucketStore(rps float64, burst int, opts ...BucketStoreOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) RPS() float64 { return float64(s.rps) }
func (s *BucketStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *BucketStore) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

func (s *BucketStore) GetString(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *BucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
func (s *BucketStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
