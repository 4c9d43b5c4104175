package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// MatchQueue is the cross-instance FIFO of players waiting for an opponent.
// It lives in the coordination store so horizontally scaled instances share
// one queue; PairPop must be atomic against concurrent instances.
type MatchQueue interface {
	Enqueue(ctx context.Context, playerID string) error
	Remove(ctx context.Context, playerID string) error
	PairPop(ctx context.Context) (a, b string, ok bool, err error)
	Depth(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// pairPopScript pops the two oldest waiting players in one server-side
// operation. If only one player is waiting it is pushed back and nothing is
// returned. Duplicate enqueues of a popped player are swept out so the same
// id can never come back as the other side of a pair.
var pairPopScript = redis.NewScript(`
local a = redis.call('LPOP', KEYS[1])
if not a then
  return nil
end
redis.call('LREM', KEYS[1], 0, a)
local b = redis.call('LPOP', KEYS[1])
if not b then
  redis.call('LPUSH', KEYS[1], a)
  return nil
end
redis.call('LREM', KEYS[1], 0, b)
return {a, b}
`)

// RedisMatchQueue implements MatchQueue on a redis list.
type RedisMatchQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisMatchQueue(rdb *redis.Client, key string) *RedisMatchQueue {
	return &RedisMatchQueue{rdb: rdb, key: key}
}

// Enqueue appends the player to the tail. Any stale occurrence from an
// earlier visit is dropped first so the player cannot hold two positions.
func (q *RedisMatchQueue) Enqueue(ctx context.Context, playerID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.key, 0, playerID)
	pipe.RPush(ctx, q.key, playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue %s: %w", playerID, err)
	}
	return nil
}

// Remove drops all occurrences of the player.
func (q *RedisMatchQueue) Remove(ctx context.Context, playerID string) error {
	if err := q.rdb.LRem(ctx, q.key, 0, playerID).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", playerID, err)
	}
	return nil
}

// PairPop atomically pops the two oldest players.
func (q *RedisMatchQueue) PairPop(ctx context.Context) (string, string, bool, error) {
	res, err := pairPopScript.Run(ctx, q.rdb, []string{q.key}).Result()
	if err == redis.Nil {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("pair pop: %w", err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return "", "", false, fmt.Errorf("pair pop: unexpected reply %v", res)
	}
	a, aok := pair[0].(string)
	b, bok := pair[1].(string)
	if !aok || !bok {
		return "", "", false, fmt.Errorf("pair pop: unexpected reply %v", res)
	}
	return a, b, true, nil
}

// Depth returns the number of waiting players.
func (q *RedisMatchQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// Ping probes the coordination store for the health endpoint.
func (q *RedisMatchQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
