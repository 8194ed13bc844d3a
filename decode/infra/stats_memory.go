package infra

import (
	"context"
	"sync"

	"decoder-gateway/decode/domain"
)

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      map[domain.Outcome]int64
	byEndpoint map[string]map[domain.Outcome]int64
	byKey      map[string]map[domain.Outcome]int64

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total:      make(map[domain.Outcome]int64),
		byEndpoint: make(map[string]map[domain.Outcome]int64),
		byKey:      make(map[string]map[domain.Outcome]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implementa domain.StatsStore.
func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Outcome]++

	if ev.Endpoint != "" {
		m := s.byEndpoint[ev.Endpoint]
		if m == nil {
			m = make(map[domain.Outcome]int64)
			s.byEndpoint[ev.Endpoint] = m
		}
		m[ev.Outcome]++
	}

	if s.trackKeys && ev.Key != "" {
		m := s.byKey[string(ev.Key)]
		if m == nil {
			m = make(map[domain.Outcome]int64)
			s.byKey[string(ev.Key)] = m
		}
		m[ev.Outcome]++
	}
	return nil
}

func (s *MemoryStatsStore) Total() map[domain.Outcome]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Outcome]int64, len(s.total))
	for k, v := range s.total {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByEndpoint() map[string]map[domain.Outcome]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[domain.Outcome]int64, len(s.byEndpoint))
	for e, m := range s.byEndpoint {
		c := make(map[domain.Outcome]int64, len(m))
		for k, v := range m {
			c[k] = v
		}
		out[e] = c
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]map[domain.Outcome]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[domain.Outcome]int64, len(s.byKey))
	for e, m := range s.byKey {
		c := make(map[domain.Outcome]int64, len(m))
		for k, v := range m {
			c[k] = v
		}
		out[e] = c
	}
	return out
}
