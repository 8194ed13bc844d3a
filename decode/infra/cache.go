package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"decoder-gateway/decode/domain"
)

// Cache embrulha um domain.Validator com TTL e single-flight por credencial.
//
// Garantias:
//   - uma entrada vencida (now >= expiresAt) nunca é servida
//   - N lookups concorrentes da mesma credencial em miss geram exatamente 1
//     chamada ao Validator; todos observam o mesmo resultado
//   - domain.ErrUpstreamUnavailable nunca entra no cache (condição transitória
//     do sistema, não um fato sobre a credencial)
//   - resultado negativo entra com TTL curto, para credencial ruim repetida
//     não martelar o upstream
//
// O lock nunca é segurado durante a chamada de rede: o single-flight cuida da
// coordenação do miss e o mapa só é tocado em leituras/escritas curtas.
type Cache struct {
	validator domain.Validator

	ttl          time.Duration
	negativeTTL  time.Duration
	cleanupEvery time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	result    domain.ValidationResult
	expiresAt time.Time
}

type CacheOption func(*Cache)

func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = d }
}

// WithNegativeTTL controla o TTL de resultados inválidos.
func WithNegativeTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.negativeTTL = d }
}

func WithCacheCleanupEvery(d time.Duration) CacheOption {
	return func(c *Cache) { c.cleanupEvery = d }
}

func NewCache(validator domain.Validator, opts ...CacheOption) *Cache {
	c := &Cache{
		validator:    validator,
		ttl:          5 * time.Minute,
		negativeTTL:  1 * time.Minute,
		cleanupEvery: 10 * time.Minute,
		now:          time.Now,
		entries:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrValidate implementa application.CredentialChecker.
func (c *Cache) GetOrValidate(ctx context.Context, credential string) (domain.ValidationResult, error) {
	if res, ok := c.lookup(credential); ok {
		return res, nil
	}

	// o primeiro caller do miss valida; os demais esperam o mesmo resultado.
	// O slot é liberado quando a chamada resolve (sucesso ou falha), então o
	// próximo miss começa do zero.
	v, err, _ := c.group.Do(credential, func() (any, error) {
		// outro caller pode ter preenchido entre o lookup e o voo único
		if res, ok := c.lookup(credential); ok {
			return res, nil
		}

		res, err := c.validator.Validate(ctx, credential)
		if err != nil {
			return domain.ValidationResult{}, err
		}

		ttl := c.ttl
		if !res.Valid {
			ttl = c.negativeTTL
		}

		c.mu.Lock()
		c.entries[credential] = cacheEntry{result: res, expiresAt: c.now().Add(ttl)}
		c.mu.Unlock()

		return res, nil
	})
	if err != nil {
		return domain.ValidationResult{}, err
	}
	return v.(domain.ValidationResult), nil
}

func (c *Cache) lookup(credential string) (domain.ValidationResult, bool) {
	now := c.now()

	c.mu.RLock()
	ent, ok := c.entries[credential]
	c.mu.RUnlock()

	if !ok || !now.Before(ent.expiresAt) {
		return domain.ValidationResult{}, false
	}
	return ent.result, true
}

// Sweep remove entradas vencidas. Opcional: a leitura já ignora entradas
// vencidas, o sweep só devolve memória de credenciais que pararam de aparecer.
func (c *Cache) Sweep() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, ent := range c.entries {
		if !now.Before(ent.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// StartJanitor inicia o sweep periódico. Pare cancelando o contexto.
func (c *Cache) StartJanitor(ctx DoneContext) {
	if c.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(c.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

// Len retorna o número de entradas (vencidas ou não). Para observabilidade.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
