// Package presence maps account ids to live connection locators in a
// store shared by every server process. An account may hold several
// locators at once (one per device); fanout targets all of them.
package presence

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Directory is the shared account -> connection locator mapping.
type Directory interface {
	// Set registers a locator for an account. Idempotent, and never
	// clobbers the account's other locators.
	Set(ctx context.Context, accountID, locator string) error
	// Get returns all locators for an account; empty means offline.
	Get(ctx context.Context, accountID string) ([]string, error)
	// Remove drops one locator. Removing an unknown locator is a no-op.
	Remove(ctx context.Context, accountID, locator string) error
	// GetBatch resolves many accounts at once. Accounts with no entry
	// are omitted from the result, never reported as errors.
	GetBatch(ctx context.Context, accountIDs []string) (map[string][]string, error)
	// Refresh extends the liveness of one locator; called from that
	// connection's heartbeat.
	Refresh(ctx context.Context, accountID, locator string) error
}

const (
	setPrefix     = "presence:"
	locatorPrefix = "presence:conn:"
)

// Every locator carries its own liveness key. A locator orphaned by a
// crashed process expires on its own even while the account's other
// devices keep refreshing theirs; reads prune set members whose
// liveness key is gone.
const entryTTL = 2 * time.Minute

type RedisDirectory struct {
	client *redis.Client
}

func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

// Connect creates a Redis client from a URL and verifies the connection.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Println("Connected to Redis")
	return client, nil
}

func key(accountID string) string {
	return setPrefix + accountID
}

func locatorKey(accountID, locator string) string {
	return locatorPrefix + accountID + ":" + locator
}

// splitLive partitions set members by whether their liveness key still
// exists.
func splitLive(members []string, alive []bool) (live, stale []string) {
	for i, m := range members {
		if i < len(alive) && alive[i] {
			live = append(live, m)
		} else {
			stale = append(stale, m)
		}
	}
	return live, stale
}

func (d *RedisDirectory) Set(ctx context.Context, accountID, locator string) error {
	pipe := d.client.TxPipeline()
	pipe.SAdd(ctx, key(accountID), locator)
	pipe.Expire(ctx, key(accountID), entryTTL)
	pipe.Set(ctx, locatorKey(accountID, locator), "1", entryTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (d *RedisDirectory) Get(ctx context.Context, accountID string) ([]string, error) {
	members, err := d.client.SMembers(ctx, key(accountID)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(members))
	for i, loc := range members {
		cmds[i] = pipe.Exists(ctx, locatorKey(accountID, loc))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	alive := make([]bool, len(members))
	for i, cmd := range cmds {
		alive[i] = cmd.Val() > 0
	}
	live, stale := splitLive(members, alive)
	d.prune(ctx, accountID, stale)
	return live, nil
}

func (d *RedisDirectory) Remove(ctx context.Context, accountID, locator string) error {
	pipe := d.client.TxPipeline()
	pipe.SRem(ctx, key(accountID), locator)
	pipe.Del(ctx, locatorKey(accountID, locator))
	_, err := pipe.Exec(ctx)
	return err
}

func (d *RedisDirectory) GetBatch(ctx context.Context, accountIDs []string) (map[string][]string, error) {
	if len(accountIDs) == 0 {
		return map[string][]string{}, nil
	}

	pipe := d.client.Pipeline()
	memberCmds := make(map[string]*redis.StringSliceCmd, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" {
			continue
		}
		memberCmds[id] = pipe.SMembers(ctx, key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	members := make(map[string][]string, len(memberCmds))
	livenessPipe := d.client.Pipeline()
	existsCmds := make(map[string][]*redis.IntCmd, len(memberCmds))
	for id, cmd := range memberCmds {
		locators, err := cmd.Result()
		if err != nil || len(locators) == 0 {
			continue
		}
		members[id] = locators
		for _, loc := range locators {
			existsCmds[id] = append(existsCmds[id], livenessPipe.Exists(ctx, locatorKey(id, loc)))
		}
	}
	if len(members) == 0 {
		return map[string][]string{}, nil
	}
	if _, err := livenessPipe.Exec(ctx); err != nil {
		return nil, err
	}

	result := make(map[string][]string, len(members))
	for id, locators := range members {
		alive := make([]bool, len(locators))
		for i, cmd := range existsCmds[id] {
			alive[i] = cmd.Val() > 0
		}
		live, stale := splitLive(locators, alive)
		d.prune(ctx, id, stale)
		if len(live) > 0 {
			result[id] = live
		}
	}
	return result, nil
}

// Refresh extends the TTL on one locator's liveness key and the
// account's set. Called from the per-connection liveness loop.
func (d *RedisDirectory) Refresh(ctx context.Context, accountID, locator string) error {
	pipe := d.client.TxPipeline()
	pipe.Expire(ctx, key(accountID), entryTTL)
	pipe.Expire(ctx, locatorKey(accountID, locator), entryTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// prune drops set members whose liveness key has expired. Best effort;
// a failed prune only delays cleanup until the next read.
func (d *RedisDirectory) prune(ctx context.Context, accountID string, stale []string) {
	if len(stale) == 0 {
		return
	}
	args := make([]interface{}, len(stale))
	for i, s := range stale {
		args[i] = s
	}
	if err := d.client.SRem(ctx, key(accountID), args...).Err(); err != nil {
		log.Printf("presence: pruning %d stale locators for %s failed: %v", len(stale), accountID, err)
	}
}
