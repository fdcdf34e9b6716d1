// Package lock implements the cross-instance CAS owner election the
// config refresher (C7) uses before starting a refresh cycle (spec.md
// §4.7, §5): a shared-memory SETNX keyed by the management URL, held
// only across one outbound call, released by the acquirer when the
// cycle completes.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript only deletes the key if it still holds the value this
// acquirer set, so one instance can never release a lock another
// instance has since acquired (the same safety property as the
// teacher's distributed.go, adapted from a non-reentrant mutex to a
// single-shot election).
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lock is a single CAS election attempt against one key.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// New prepares a Lock for key, generating a fresh owner value. ttl
// bounds how long the key survives if Release is never called (e.g.
// the owning instance crashes mid-cycle).
func New(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, value: uuid.NewString(), ttl: ttl}
}

// TryAcquire attempts the CAS once; spec.md §4.7 has losers reschedule
// their own tick by jitter rather than retry here.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: acquire %q: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the key if this Lock still owns it. Safe to call even
// if TryAcquire never succeeded or the TTL already expired.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Err(); err != nil {
		return fmt.Errorf("lock: release %q: %w", l.key, err)
	}
	return nil
}

// Jitter returns a random delay in [min, max] for a losing instance to
// reschedule its tick, per spec.md §4.7's 10-20s cross-instance
// back-off.
func Jitter(min, max time.Duration, rnd func() float64) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rnd()*float64(span))
}
