package infra

import (
	"context"
	"sync"
	"time"

	"decoder-gateway/decode/domain"
)

// WindowStore é a implementação em memória do domain.WindowStore: janelas
// fixas alinhadas ao relógio (now.Truncate(window)) por (chave, tier).
//
// O check e o increment de todos os tiers de uma chave acontecem sob o mesmo
// lock, então requisições concorrentes não conseguem estourar o limite em
// conjunto. Uma rejeição não incrementa contador nenhum.
type WindowStore struct {
	mu      sync.Mutex
	entries map[domain.Key]*windowEntry

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type windowEntry struct {
	windows  map[string]*window
	lastSeen time.Time
}

type window struct {
	start time.Time
	count int
}

type WindowStoreOption func(*WindowStore)

// WithIdleTTL controla depois de quanto tempo sem uso uma chave é removida.
// Precisa ser >= a maior janela configurada, senão a remoção zera contadores
// que ainda valem (ex: o tier diário).
func WithIdleTTL(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

func NewWindowStore(opts ...WindowStoreOption) *WindowStore {
	s := &WindowStore{
		entries:      make(map[domain.Key]*windowEntry),
		idleTTL:      25 * time.Hour,
		cleanupEvery: 10 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implementa domain.WindowStore.
func (s *WindowStore) Take(_ context.Context, key domain.Key, tiers []domain.Tier) (domain.Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &windowEntry{windows: make(map[string]*window, len(tiers))}
		s.entries[key] = ent
	}
	ent.lastSeen = now

	// primeira passada: só verifica; nada é consumido se algum tier bloquear
	var worst time.Duration
	var worstTier string
	for _, t := range tiers {
		start := now.Truncate(t.Window)
		w := ent.windows[t.Name]
		if w == nil || !w.start.Equal(start) {
			continue // janela nova: tem capacidade
		}
		if w.count >= t.Limit {
			if remaining := start.Add(t.Window).Sub(now); remaining > worst {
				worst = remaining
				worstTier = t.Name
			}
		}
	}
	if worstTier != "" {
		return domain.Decision{Allowed: false, RetryAfter: worst, Tier: worstTier}, nil
	}

	// segunda passada: consome 1 de cada tier, resetando janelas vencidas
	for _, t := range tiers {
		start := now.Truncate(t.Window)
		w := ent.windows[t.Name]
		if w == nil || !w.start.Equal(start) {
			ent.windows[t.Name] = &window{start: start, count: 1}
			continue
		}
		w.count++
	}
	return domain.Decision{Allowed: true}, nil
}

func (s *WindowStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
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

// DoneContext é o subconjunto de context.Context que os janitors precisam.
type DoneContext interface {
	Done() <-chan struct{}
}
