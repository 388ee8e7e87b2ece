package runlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = errors.New("run already in progress")

// Locker guards pipeline runs so that scheduled and triggered runs never overlap.
type Locker interface {
	// Acquire takes the lock or fails with ErrRunInProgress. The returned
	// release func is safe to call more than once.
	Acquire(ctx context.Context) (release func(), err error)
	Close() error
}

// Options selects and configures the lock backend.
type Options struct {
	Type          string
	RedisAddr     string
	RedisPassword string
	Key           string
	TTL           time.Duration
}

// New returns the configured Locker.
func New(opts Options) (Locker, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Type)) {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		if strings.TrimSpace(opts.RedisAddr) == "" {
			return nil, fmt.Errorf("redis run lock requires an address")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
		})
		return NewRedis(client, opts.Key, opts.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported run lock type %q", opts.Type)
	}
}

// Local is an in-process Locker.
type Local struct {
	held atomic.Bool
}

// NewLocal returns an unlocked in-process lock.
func NewLocal() *Local { return &Local{} }

func (l *Local) Acquire(context.Context) (func(), error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.held.Store(false)
		}
	}, nil
}

func (l *Local) Close() error { return nil }

const (
	defaultRedisKey = "samvad-coupon-harvester:run-lock"
	defaultRedisTTL = time.Hour
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointing at the same key. The TTL
// bounds how long a crashed holder can block others.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis builds a redis-backed lock on key with the given TTL.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if strings.TrimSpace(key) == "" {
		key = defaultRedisKey
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{r.key}, token).Err()
	}, nil
}

func (r *Redis) Close() error { return r.client.Close() }
