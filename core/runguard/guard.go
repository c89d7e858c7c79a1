package runguard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrBusy is returned when another run holds the key.
var ErrBusy = errors.New("another run is already in progress")

// LedgerKey is held by every run that writes the ledger: syncs and saved reconciliations.
const LedgerKey = "ledger"

// Release gives a lease back. Releasing twice is a no-op.
type Release func(ctx context.Context) error

// Guard grants exclusive leases per key.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// New returns a RedisGuard when cfg names a Redis server, otherwise a LocalGuard.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Guard, error) {
	if cfg.RedisAddr == "" {
		logger.Debug("Using in-process run guard")
		return NewLocalGuard(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return NewRedisGuard(client, cfg.KeyPrefix), nil
}

// TTL returns the configured lease lifetime.
func (c Config) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// redisClient is the subset of *redis.Client the guard needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// releaseScript deletes the key only when it still holds the caller's token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisGuard is a Guard backed by Redis keys.
type RedisGuard struct {
	client redisClient
	prefix string
}

// NewRedisGuard creates a RedisGuard. client is usually a *redis.Client.
func NewRedisGuard(client redisClient, prefix string) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix}
}

// Acquire implements Guard.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	fullKey := g.prefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			err = g.client.Eval(ctx, releaseScript, []string{fullKey}, token).Err()
		})
		return err
	}, nil
}

// LocalGuard is an in-memory Guard for a single process.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]localLease
	now  func() time.Time
}

type localLease struct {
	token   string
	expires time.Time
}

// NewLocalGuard creates an empty LocalGuard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: map[string]localLease{}, now: time.Now}
}

// Acquire implements Guard.
func (g *LocalGuard) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if l, ok := g.held[key]; ok && now.Before(l.expires) {
		return nil, ErrBusy
	}

	token := uuid.NewString()
	g.held[key] = localLease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		if l, ok := g.held[key]; ok && l.token == token {
			delete(g.held, key)
		}
		return nil
	}, nil
}
