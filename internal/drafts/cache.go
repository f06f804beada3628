package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix           = "drafts"
	invalidationChannel = "drafts.invalidate"
)

// Cache keeps fetched documents in Redis. Every entity has its own version
// counter; a write bumps the counter and stale entries expire with their TTL.
// A nil *Cache is valid and always loads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(kind, id string) string {
	return strings.Join([]string{keyPrefix, kind, id, "version"}, ":")
}

// Version returns the entity's version, 0 when it was never bumped.
func (c *Cache) Version(ctx context.Context, kind, id string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(kind, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// BuildKey composes the entry key with the entity's current version.
func (c *Cache) BuildKey(ctx context.Context, kind, id string) (string, error) {
	ver, err := c.Version(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, kind, id, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, kind, id string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("drafts: cache loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx, dest, loader)
	}
	key, err := c.BuildKey(ctx, kind, id)
	if err != nil {
		return err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates an entity and announces it on the invalidation channel.
func (c *Cache) Bump(ctx context.Context, kind, id string) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(kind, id)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, invalidationChannel, fmt.Sprintf("%s:%s:%d", kind, id, ver)).Err()
}

// ListenForInvalidation calls fn with the kind and id of every bumped entity
// until ctx ends.
func (c *Cache) ListenForInvalidation(ctx context.Context, fn func(kind, id string)) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, invalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if kind, id, ok := parseInvalidation(msg.Payload); ok {
					fn(kind, id)
				}
			}
		}
	}()
	return nil
}

// parseInvalidation splits "kind:id:version"; ids may contain colons.
func parseInvalidation(payload string) (kind, id string, ok bool) {
	kind, rest, ok := strings.Cut(payload, ":")
	if !ok {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", "", false
	}
	return kind, rest[:i], true
}
