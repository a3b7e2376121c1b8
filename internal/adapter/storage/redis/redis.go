package redis

import (
	"context"
	"fmt"
	"time"

	"qr-payment-ledger/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redemption marks and rate-limit checks sit on the request path, so Redis
// calls fail fast instead of holding a scan open.
const (
	dialTimeout = 3 * time.Second
	ioTimeout   = time.Second
)

// NewClient creates the Redis client for redemption markers and rate-limit
// windows and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(clientOptions(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Dur("redemption_ttl", cfg.RedemptionTTL).
		Msg("Redis connection established")

	return client, nil
}

func clientOptions(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
}
