package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"decoder-gateway/decode"
	"decoder-gateway/decode/application"
	"decoder-gateway/decode/domain"
	"decoder-gateway/decode/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var rdb *redis.Client
	if cfg.needsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var windowStore domain.WindowStore
	switch cfg.rateStore {
	case "redis":
		windowStore = infra.NewRedisWindowStore(rdb)
	default:
		ws := infra.NewWindowStore(infra.WithIdleTTL(cfg.maxTierWindow() + time.Hour))
		ws.StartJanitor(ctx)
		windowStore = ws
	}

	buckets := infra.NewBucketStore(cfg.sideRPS, cfg.sideBurst)
	buckets.StartJanitor(ctx)

	var stats domain.StatsStore
	if cfg.statsEnabled {
		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	validator := infra.NewClient(cfg.upstreamURL, cfg.upstreamTimeout)
	cache := infra.NewCache(
		validator,
		infra.WithTTL(cfg.cacheTTL),
		infra.WithNegativeTTL(cfg.cacheNegativeTTL),
	)
	cache.StartJanitor(ctx)

	h := decode.Handlers{
		Pipeline: application.Pipeline{Checker: cache, TokenParam: cfg.tokenParam},
		Stats:    stats,
	}

	keyFn := decode.DefaultKeyFunc(cfg.keyHeader, cfg.trustXFF)
	decodeMW := decode.TierLimitMiddleware(decode.TierLimitOptions{
		Store:      windowStore,
		Tiers:      cfg.decodeTiers(),
		Stats:      stats,
		KeyFn:      keyFn,
		AddHeaders: cfg.addHeaders,
	})
	batchMW := decode.TierLimitMiddleware(decode.TierLimitOptions{
		Store:      windowStore,
		Tiers:      cfg.batchTiers(),
		Stats:      stats,
		KeyFn:      keyFn,
		AddHeaders: cfg.addHeaders,
	})
	throttleMW := decode.ThrottleMiddleware(decode.ThrottleOptions{
		Store: buckets,
		Stats: stats,
		KeyFn: keyFn,
	})

	r := chi.NewRouter()
	if cfg.concurrencyMax > 0 {
		r.Use(decode.MaxInflightMiddleware(infra.NewSemaphore(cfg.concurrencyMax, cfg.concurrencyTimeout)))
	}
	r.Get("/healthz", h.Health)
	r.Get("/api/docs", h.Docs)
	r.Group(func(r chi.Router) {
		r.Use(throttleMW)
		r.Get("/api", h.SimpleDecode)
		r.Post("/api/validate-token", h.ValidateToken)
	})
	r.With(decodeMW).Post("/api/decode", h.Decode)
	r.With(batchMW).Post("/api/batch-decode", h.BatchDecode)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("decoder gateway listening on %s -> upstream %s", cfg.listenAddr, cfg.upstreamURL)
	log.Printf("rate: store=%s decode=[%s] batch=[%s] keyHeader=%q trustXFF=%v", cfg.rateStore, formatTiers(cfg.decodeTiers()), formatTiers(cfg.batchTiers()), cfg.keyHeader, cfg.trustXFF)
	log.Printf("cache: ttl=%s negativeTTL=%s upstreamTimeout=%s", cfg.cacheTTL, cfg.cacheNegativeTTL, cfg.upstreamTimeout)
	log.Printf("stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.statsEnabled, cfg.redisAddr, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackKeys)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr      string
	upstreamURL     string
	upstreamTimeout time.Duration

	cacheTTL         time.Duration
	cacheNegativeTTL time.Duration

	rateStore      string
	ratePerMinute  int
	ratePerHour    int
	ratePerDay     int
	batchPerMinute int

	sideRPS   float64
	sideBurst int

	keyHeader  string
	trustXFF   bool
	addHeaders bool

	tokenParam string

	concurrencyMax     int
	concurrencyTimeout time.Duration

	redisAddr     string
	redisPassword string
	redisDB       int

	statsEnabled   bool
	statsPrefix    string
	statsTTL       time.Duration
	statsBucket    string
	statsTrackKeys bool
}

func (c config) decodeTiers() []domain.Tier {
	return []domain.Tier{
		{Name: "minute", Limit: c.ratePerMinute, Window: time.Minute},
		{Name: "hour", Limit: c.ratePerHour, Window: time.Hour},
		{Name: "day", Limit: c.ratePerDay, Window: 24 * time.Hour},
	}
}

func (c config) batchTiers() []domain.Tier {
	return []domain.Tier{
		{Name: "minute", Limit: c.batchPerMinute, Window: time.Minute},
		{Name: "hour", Limit: c.ratePerHour, Window: time.Hour},
		{Name: "day", Limit: c.ratePerDay, Window: 24 * time.Hour},
	}
}

func (c config) maxTierWindow() time.Duration {
	max := time.Duration(0)
	for _, t := range c.decodeTiers() {
		if t.Window > max {
			max = t.Window
		}
	}
	return max
}

func (c config) needsRedis() bool {
	return c.rateStore == "redis" || c.statsEnabled
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.upstreamTimeout = getenvDurationDefault("UPSTREAM_TIMEOUT", 5*time.Second)

	cfg.cacheTTL = getenvDurationDefault("CACHE_TTL", 5*time.Minute)
	cfg.cacheNegativeTTL = getenvDurationDefault("CACHE_NEGATIVE_TTL", 1*time.Minute)

	cfg.rateStore = strings.ToLower(getenvDefault("RATE_STORE", "memory"))
	cfg.ratePerMinute = getenvIntDefault("RATE_PER_MINUTE", 10)
	cfg.ratePerHour = getenvIntDefault("RATE_PER_HOUR", 50)
	cfg.ratePerDay = getenvIntDefault("RATE_PER_DAY", 200)
	cfg.batchPerMinute = getenvIntDefault("BATCH_PER_MINUTE", 5)

	cfg.sideRPS = getenvFloatDefault("SIDE_RPS", 0.34)
	cfg.sideBurst = getenvIntDefault("SIDE_BURST", 20)

	cfg.keyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.tokenParam = getenvDefault("PLAYABLE_TOKEN_PARAM", "token")

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "decode:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateStore != "memory" && cfg.rateStore != "redis" {
		return config{}, errors.New("RATE_STORE must be memory or redis")
	}
	if cfg.needsRedis() && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when RATE_STORE=redis or STATS_ENABLED=true")
	}
	if cfg.ratePerMinute <= 0 || cfg.ratePerHour <= 0 || cfg.ratePerDay <= 0 || cfg.batchPerMinute <= 0 {
		return config{}, errors.New("rate limits must be > 0")
	}
	if cfg.sideRPS <= 0 || cfg.sideBurst <= 0 {
		return config{}, errors.New("SIDE_RPS and SIDE_BURST must be > 0")
	}
	if cfg.cacheTTL <= 0 || cfg.cacheNegativeTTL <= 0 {
		return config{}, errors.New("cache TTLs must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func formatTiers(tiers []domain.Tier) string {
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, strconv.Itoa(t.Limit)+"/"+t.Name)
	}
	return strings.Join(parts, ",")
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
