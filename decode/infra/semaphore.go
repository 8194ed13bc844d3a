package infra

import (
	"context"
	"time"
)

// Semaphore limita requisições simultâneas com um channel de capacidade fixa.
// Protege o processo e o upstream de picos de concorrência, independente do
// rate limit por chave.
type Semaphore struct {
	sem     chan struct{}
	timeout time.Duration
}

// NewSemaphore cria um semáforo com `max` vagas. Com timeout <= 0 o Acquire
// espera até o contexto encerrar.
func NewSemaphore(max int, timeout time.Duration) *Semaphore {
	return &Semaphore{sem: make(chan struct{}, max), timeout: timeout}
}

// Acquire tenta adquirir uma vaga. Retorna (release, ok); se ok=false nenhuma
// vaga foi adquirida. release deve ser chamado exatamente uma vez.
func (s *Semaphore) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
