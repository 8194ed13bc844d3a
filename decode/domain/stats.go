package domain

import (
	"context"
	"time"
)

// Outcome classifica o desfecho terminal de uma requisição do pipeline.
// Os valores coincidem com o campo errorKind exposto na resposta JSON.
type Outcome string

const (
	OutcomeOK                  Outcome = "ok"
	OutcomeMalformedInput      Outcome = "malformed_input"
	OutcomeInvalidCredential   Outcome = "invalid_credential"
	OutcomeUpstreamUnavailable Outcome = "upstream_unavailable"
	OutcomeRateLimited         Outcome = "rate_limited"
)

// StatsEvent representa um desfecho observado para fins de estatística.
//
// Endpoint é uma string genérica (método + rota); cuidado com cardinalidade
// se a chave do chamador for rastreada em uma base como Redis.
type StatsEvent struct {
	Key      Key
	Outcome  Outcome
	Endpoint string
	At       time.Time
}

// StatsStore é a estratégia de persistência das estatísticas do pipeline.
//
// Implementações podem armazenar em Redis, memória, etc. Quem chama deve
// tratar erro como best-effort (não derrubar a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
