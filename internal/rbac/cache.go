package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "rbac:menu:version"
	bumpChannel     = "rbac.bump"
)

// MenuCache wraps Redis based caching of resolved menus with versioning
// controls. A nil cache is a no-op passthrough.
type MenuCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMenuCache instantiates the cache helper.
func NewMenuCache(client *redis.Client, ttl time.Duration) *MenuCache {
	return &MenuCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *MenuCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// MenuKey composes the cache key for a role set with the current version.
// Role ids are part of the key so each distinct role combination caches
// independently.
func (c *MenuCache) MenuKey(ctx context.Context, roleIDs []int64) (string, error) {
	parts := make([]string, 0, len(roleIDs)+2)
	parts = append(parts, "rbac", "menu")
	for _, id := range roleIDs {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchMenu loads a cached menu or populates it using the loader.
func (c *MenuCache) FetchMenu(ctx context.Context, key string, loader func(context.Context) ([]MenuNode, error)) ([]MenuNode, error) {
	if loader == nil {
		return nil, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var menu []MenuNode
		if err := json.Unmarshal(payload, &menu); err == nil {
			return menu, nil
		}
		// Corrupt entry, fall through and rebuild.
	} else if err != redis.Nil {
		return nil, err
	}
	menu, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(menu)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return menu, nil
}

// Bump invalidates every cached menu by incrementing the global version and
// publishing an event.
func (c *MenuCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications.
func (c *MenuCache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = bumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
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
				if msg.Payload != "" {
					if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
						_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
						continue
					}
				}
				_ = c.client.Incr(ctx, cacheVersionKey).Err()
			}
		}
	}()
	return nil
}
