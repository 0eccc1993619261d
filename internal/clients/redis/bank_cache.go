package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
)

// BankCache is a read-through cache for question-bank CSV payloads so a
// busy course does not re-download the same blob on every evaluation.
type BankCache interface {
	Get(ctx context.Context, course, module, language string) ([]byte, bool, error)
	Set(ctx context.Context, course, module, language string, payload []byte) error
	Invalidate(ctx context.Context, course, module, language string) error
	Close() error
}

type bankCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewBankCache(log *logger.Logger) (BankCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttl := 30 * time.Minute
	if v := strings.TrimSpace(os.Getenv("QUESTION_BANK_CACHE_TTL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			ttl = parsed
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &bankCache{
		log: log.With("service", "RedisBankCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func cacheKey(course, module, language string) string {
	return fmt.Sprintf("qbank:%s:%s:%s", course, module, strings.ToLower(language))
}

func (c *bankCache) Get(ctx context.Context, course, module, language string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(course, module, language)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *bankCache) Set(ctx context.Context, course, module, language string, payload []byte) error {
	return c.rdb.Set(ctx, cacheKey(course, module, language), payload, c.ttl).Err()
}

func (c *bankCache) Invalidate(ctx context.Context, course, module, language string) error {
	return c.rdb.Del(ctx, cacheKey(course, module, language)).Err()
}

func (c *bankCache) Close() error {
	return c.rdb.Close()
}
