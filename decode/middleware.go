package decode

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"decoder-gateway/decode/application"
	"decoder-gateway/decode/domain"
)

type KeyFunc func(r *http.Request) domain.Key

// DefaultKeyFunc extrai a identidade do chamador: header dedicado (se
// configurado), primeiro IP do X-Forwarded-For (se confiável), senão o host
// do RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) domain.Key {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return domain.Key(v)
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					if ip := strings.TrimSpace(parts[0]); ip != "" {
						return domain.Key(ip)
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return domain.Key(host)
		}
		if r.RemoteAddr != "" {
			return domain.Key(r.RemoteAddr)
		}
		return "unknown"
	}
}

// TierLimitOptions configura o middleware de tiers (decode e batch-decode).
type TierLimitOptions struct {
	Store domain.WindowStore
	Tiers []domain.Tier
	Stats domain.StatsStore
	KeyFn KeyFunc

	KeyHeader          string
	TrustXForwardedFor bool
	AddHeaders         bool
}

// TierLimitMiddleware admite ou rejeita a requisição antes de qualquer
// trabalho downstream. Rejeição responde 429 com Retry-After do tier esgotado
// mais restritivo; erro do store falha fechado com 500.
func TierLimitMiddleware(opts TierLimitOptions) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store: opts.Store,
		Tiers: opts.Tiers,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddHeaders {
				w.Header().Set("X-RateLimit-Key", string(key))
			}

			dec, err := svc.Decide(r.Context(), key)
			if err != nil {
				log.Printf("rate limit store failed: %v", err)
				writeError(w, http.StatusInternalServerError, "internal_error", "rate limit check failed", 0)
				return
			}

			if !dec.Allowed {
				recordStats(r.Context(), opts.Stats, domain.StatsEvent{
					Key:      key,
					Outcome:  domain.OutcomeRateLimited,
					Endpoint: r.Method + " " + r.URL.Path,
					At:       time.Now(),
				})
				retry := int(dec.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", formatInt(retry))
				writeError(w, http.StatusTooManyRequests, string(domain.OutcomeRateLimited),
					"rate limit exceeded for tier "+dec.Tier, retry)
				return
			}

			next.ServeHTTP(w, withCallerKey(r, key))
		})
	}
}

// ThrottleOptions configura o limiter frouxo dos endpoints fora do decode.
type ThrottleOptions struct {
	Store domain.LimiterStore
	Stats domain.StatsStore
	KeyFn KeyFunc

	KeyHeader          string
	TrustXForwardedFor bool
	RetryAfter         time.Duration
}

// ThrottleMiddleware aplica um token bucket por chave. Sem store configurado
// vira um no-op.
func ThrottleMiddleware(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Store == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			lim := opts.Store.Get(key)
			if lim != nil && !lim.Allow() {
				recordStats(r.Context(), opts.Stats, domain.StatsEvent{
					Key:      key,
					Outcome:  domain.OutcomeRateLimited,
					Endpoint: r.Method + " " + r.URL.Path,
					At:       time.Now(),
				})
				retry := int(opts.RetryAfter.Seconds())
				w.Header().Set("Retry-After", formatInt(retry))
				writeError(w, http.StatusTooManyRequests, string(domain.OutcomeRateLimited),
					"rate limit exceeded", retry)
				return
			}

			next.ServeHTTP(w, withCallerKey(r, key))
		})
	}
}

// Acquirer é o contrato do limite de requisições simultâneas.
type Acquirer interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// MaxInflightMiddleware rejeita com 503 quando não há vaga no semáforo.
func MaxInflightMiddleware(sem Acquirer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sem == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := sem.Acquire(r.Context())
			if !ok {
				writeError(w, http.StatusServiceUnavailable, "overloaded", "too many concurrent requests", 0)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

type callerKeyCtx struct{}

func withCallerKey(r *http.Request, key domain.Key) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), callerKeyCtx{}, key))
}

// CallerKey recupera a chave extraída pelo middleware; refaz a extração
// padrão quando o handler roda sem middleware na frente.
func CallerKey(r *http.Request) domain.Key {
	if key, ok := r.Context().Value(callerKeyCtx{}).(domain.Key); ok {
		return key
	}
	return DefaultKeyFunc("", false)(r)
}

func recordStats(ctx context.Context, stats domain.StatsStore, ev domain.StatsEvent) {
	if stats == nil {
		return
	}
	if err := stats.Record(ctx, ev); err != nil {
		log.Printf("stats record failed: %v", err)
	}
}
