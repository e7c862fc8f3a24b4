package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/brightline/portal-sessions/internal/ports"
)

// removalChannelSuffix is the pub/sub channel removal notices travel on.
const removalChannelSuffix = "session.removals"

// Redis is a Redis-backed storage adapter shared across processes.
//
// Deletes publish a removal notice tagged with this handle's origin ID;
// watchers drop notices from their own handle so a process never observes
// its own logout, matching the storage-event semantics the store expects.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	origin  string
	channel string
}

// NewRedis creates a Redis storage adapter with an optional key prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		client:  client,
		prefix:  prefix,
		origin:  uuid.NewString(),
		channel: prefix + removalChannelSuffix,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, r.prefix+key)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	for _, key := range keys {
		notice := r.origin + " " + key
		if err := r.client.Publish(ctx, r.channel, notice).Err(); err != nil {
			return fmt.Errorf("publish removal notice: %w", err)
		}
	}
	return nil
}

// WatchRemoval subscribes to removal notices for key published by other
// handles. The returned cancel closes the subscription.
func (r *Redis) WatchRemoval(key string, fn func()) (func(), error) {
	pubsub := r.client.Subscribe(context.Background(), r.channel)

	// Force the subscription to be established before returning so a
	// removal right after registration is not missed.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe removal channel: %w", err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			origin, removed, ok := strings.Cut(msg.Payload, " ")
			if !ok || origin == r.origin || removed != key {
				continue
			}
			fn()
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}
