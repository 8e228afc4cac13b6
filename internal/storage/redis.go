package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisKV stores values as plain Redis strings under a key prefix. Set
// stages values; Save writes them in one MULTI/EXEC transaction.
type RedisKV struct {
	pool   *redis.Pool
	prefix string

	mu     sync.Mutex
	staged map[string][]byte
	closed bool
}

// OpenRedisKV connects to addr and verifies the connection with PING.
func OpenRedisKV(addr, prefix string) (*RedisKV, error) {
	pool := &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr,
				redis.DialConnectTimeout(2*time.Second),
				redis.DialReadTimeout(2*time.Second),
				redis.DialWriteTimeout(2*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn := pool.Get()
	defer func() { _ = conn.Close() }()
	if _, err := conn.Do("PING"); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &RedisKV{pool: pool, prefix: prefix, staged: make(map[string][]byte)}, nil
}

func (r *RedisKV) Get(key string) ([]byte, bool, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false, ErrClosed
	}
	if v, ok := r.staged[key]; ok {
		r.mu.Unlock()
		return append([]byte(nil), v...), true, nil
	}
	r.mu.Unlock()

	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	value, err := redis.Bytes(conn.Do("GET", r.prefix+key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisKV) Set(key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.staged[key] = append([]byte(nil), value...)
	return nil
}

func (r *RedisKV) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if len(r.staged) == 0 {
		return nil
	}

	conn := r.pool.Get()
	defer func() { _ = conn.Close() }()

	if err := conn.Send("MULTI"); err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	for key, value := range r.staged {
		if err := conn.Send("SET", r.prefix+key, value); err != nil {
			return fmt.Errorf("queueing key %q: %w", key, err)
		}
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	clear(r.staged)
	return nil
}

// Close discards unsaved values and closes the connection pool.
func (r *RedisKV) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.pool.Close()
}
