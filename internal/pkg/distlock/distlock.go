// Package distlock guards jobs that must not run on two hosts at once.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another process owns the lock.
var ErrHeld = errors.New("distlock: lock held elsewhere")

// Lock is a non-blocking mutual exclusion lock.
type Lock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// New returns a Redis lock when rdb is non-nil and a Postgres advisory lock
// otherwise.
func New(rdb *redis.Client, db *sql.DB, name string, ttl time.Duration) Lock {
	if rdb != nil {
		return NewRedis(rdb, name, ttl)
	}
	return NewAdvisory(db, name)
}

// Redis is a SET NX lock with a random owner token. The TTL bounds how long
// a crashed holder blocks other runs.
type Redis struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedis(rdb *redis.Client, name string, ttl time.Duration) *Redis {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return &Redis{rdb: rdb, key: "lock:" + name, token: hex.EncodeToString(b), ttl: ttl}
}

func (l *Redis) Acquire(ctx context.Context) error {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Release deletes the key only while this instance still owns it.
func (l *Redis) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

// Advisory uses pg_try_advisory_lock. The lock is session scoped, so it pins
// one pooled connection until Release.
type Advisory struct {
	db   *sql.DB
	id   int64
	conn *sql.Conn
}

func NewAdvisory(db *sql.DB, name string) *Advisory {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &Advisory{db: db, id: int64(h.Sum64())}
}

func (l *Advisory) Acquire(ctx context.Context) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("advisory lock conn: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&ok); err != nil {
		conn.Close()
		return fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		conn.Close()
		return ErrHeld
	}
	l.conn = conn
	return nil
}

func (l *Advisory) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	return err
}
