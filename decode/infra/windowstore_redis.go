package infra

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"decoder-gateway/decode/domain"
)

//go:embed window_take.lua
var windowTakeScript string

// RedisWindowStore implementa domain.WindowStore sobre Redis, para quando o
// operador quer contadores compartilhados entre réplicas.
//
// O script Lua avalia e incrementa todos os tiers de uma chave em uma única
// execução atômica, com a mesma semântica de janela fixa alinhada ao relógio
// do WindowStore em memória (o início da janela faz parte do nome da chave).
type RedisWindowStore struct {
	rdb    *redis.Client
	prefix string
	script *redis.Script
	now    func() time.Time
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb *redis.Client, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "decode:rate",
		script: redis.NewScript(windowTakeScript),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implementa domain.WindowStore.
func (s *RedisWindowStore) Take(ctx context.Context, key domain.Key, tiers []domain.Tier) (domain.Decision, error) {
	now := s.now()

	keys := make([]string, len(tiers))
	argv := make([]any, 0, len(tiers)*2)
	for i, t := range tiers {
		start := now.Truncate(t.Window)
		keys[i] = fmt.Sprintf("%s:%s:%s:%d", s.prefix, key, t.Name, start.UnixMilli())
		remaining := start.Add(t.Window).Sub(now)
		argv = append(argv, t.Limit, remaining.Milliseconds())
	}

	// Run usa EVALSHA e recarrega o script em caso de NOSCRIPT
	res, err := s.script.Run(ctx, s.rdb, keys, argv...).Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis window take: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis window take: unexpected script reply %v", res)
	}

	allowed, _ := res[0].(int64)
	if allowed == 1 {
		return domain.Decision{Allowed: true}, nil
	}

	retryMs, _ := res[1].(int64)
	tierIdx, _ := res[2].(int64)
	dec := domain.Decision{
		Allowed:    false,
		RetryAfter: time.Duration(retryMs) * time.Millisecond,
	}
	if tierIdx >= 1 && int(tierIdx) <= len(tiers) {
		dec.Tier = tiers[tierIdx-1].Name
	}
	return dec, nil
}
