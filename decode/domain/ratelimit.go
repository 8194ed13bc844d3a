package domain

import (
	"context"
	"time"
)

// Tier é um par (janela, limite) do rate limit. Os tiers de um endpoint são
// avaliados em conjunto: a requisição só passa se todos tiverem capacidade.
type Tier struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision é o resultado da avaliação dos tiers para uma chave.
type Decision struct {
	Allowed bool
	// RetryAfter é o valor sugerido para o header Retry-After quando bloquear:
	// o tempo restante da janela esgotada mais restritiva.
	RetryAfter time.Duration
	// Tier nomeia o tier que bloqueou; vazio quando permitido.
	Tier string
}

// WindowStore avalia e consome capacidade de todos os tiers de uma chave em
// uma única operação atômica (check-then-increment sem janela de corrida).
// Uma rejeição não consome capacidade de nenhum tier.
type WindowStore interface {
	Take(ctx context.Context, key Key, tiers []Tier) (Decision, error)
}

// Limiter representa algo que pode decidir se uma ação é permitida agora.
// Usado nos endpoints fora do fluxo de decode, onde um token bucket com
// limite frouxo é suficiente.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave.
type LimiterStore interface {
	Get(Key) Limiter
}
