package application

import (
	"context"

	"decoder-gateway/decode/domain"
)

// Service concentra a regra de aplicação do rate limit por tiers.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.WindowStore
	Tiers []domain.Tier
}

func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Store == nil || len(s.Tiers) == 0 {
		return domain.Decision{Allowed: true}, nil
	}
	return s.Store.Take(ctx, key, s.Tiers)
}
