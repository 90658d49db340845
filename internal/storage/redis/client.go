package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/storage"
)

const subscriberBuffer = 64

// Client хранит каждый скоуп в хеше kv:{scope}; изменения публикуются в канал kv-events:{scope}.
// Запись и публикация идут одним pipeline без транзакции: при гонке двух вкладок выигрывает последняя запись.
type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func hashKey(scope string) string { return "kv:" + scope }

func channel(scope string) string { return "kv-events:" + scope }

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) Get(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := c.cli.HGet(ctx, hashKey(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis.Get: %w", err)
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, scope, key, value string) error {
	return c.write(ctx, storage.Change{Scope: scope, Key: key, Value: value}, func(p redis.Pipeliner) {
		p.HSet(ctx, hashKey(scope), key, value)
	})
}

func (c *Client) Remove(ctx context.Context, scope, key string) error {
	n, err := c.cli.HDel(ctx, hashKey(scope), key).Result()
	if err != nil {
		return fmt.Errorf("redis.Remove: %w", err)
	}
	if n == 0 {
		return nil
	}
	return c.notify(ctx, storage.Change{Scope: scope, Key: key, Removed: true})
}

func (c *Client) Clear(ctx context.Context, scope string) error {
	return c.write(ctx, storage.Change{Scope: scope, Removed: true}, func(p redis.Pipeliner) {
		p.Del(ctx, hashKey(scope))
	})
}

func (c *Client) write(ctx context.Context, ch storage.Change, op func(redis.Pipeliner)) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	_, err = c.cli.Pipelined(ctx, func(p redis.Pipeliner) error {
		op(p)
		p.Publish(ctx, channel(ch.Scope), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis.write %s: %w", ch.Key, err)
	}
	return nil
}

func (c *Client) notify(ctx context.Context, ch storage.Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if err := c.cli.Publish(ctx, channel(ch.Scope), payload).Err(); err != nil {
		return fmt.Errorf("redis.notify: %w", err)
	}
	return nil
}

// Subscribe ждёт подтверждения подписки, чтобы изменения, сделанные сразу после вызова, не потерялись.
func (c *Client) Subscribe(ctx context.Context, scope string) (<-chan storage.Change, error) {
	ps := c.cli.Subscribe(ctx, channel(scope))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis.Subscribe: %w", err)
	}
	out := make(chan storage.Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ch storage.Change
				if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
					logger.Errorf("redis kv event decode scope=%s: %v", scope, err)
					continue
				}
				select {
				case out <- ch:
				default:
				}
			}
		}
	}()
	return out, nil
}
