package memory

import (
	"context"
	"sync"

	"github.com/hospitalbooking/internal/storage"
)

const subscriberBuffer = 64

type subscriber struct {
	scope string
	ch    chan storage.Change
}

// Client — хранилище в памяти процесса (для -dev без Redis и для тестов).
// Уведомления рассылаются неблокирующе: медленный подписчик теряет события, а не тормозит запись.
type Client struct {
	mu     sync.RWMutex
	data   map[string]map[string]string
	subs   map[*subscriber]struct{}
	closed bool
}

func New() *Client {
	return &Client{
		data: make(map[string]map[string]string),
		subs: make(map[*subscriber]struct{}),
	}
}

func (c *Client) Get(ctx context.Context, scope, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", false, storage.ErrClosed
	}
	v, ok := c.data[scope][key]
	return v, ok, nil
}

func (c *Client) Set(ctx context.Context, scope, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return storage.ErrClosed
	}
	m, ok := c.data[scope]
	if !ok {
		m = make(map[string]string)
		c.data[scope] = m
	}
	m[key] = value
	c.publish(storage.Change{Scope: scope, Key: key, Value: value})
	return nil
}

func (c *Client) Remove(ctx context.Context, scope, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return storage.ErrClosed
	}
	m, ok := c.data[scope]
	if !ok {
		return nil
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	c.publish(storage.Change{Scope: scope, Key: key, Removed: true})
	return nil
}

func (c *Client) Clear(ctx context.Context, scope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return storage.ErrClosed
	}
	delete(c.data, scope)
	c.publish(storage.Change{Scope: scope, Removed: true})
	return nil
}

// publish вызывается под c.mu.
func (c *Client) publish(ch storage.Change) {
	for s := range c.subs {
		if s.scope != ch.Scope {
			continue
		}
		select {
		case s.ch <- ch:
		default:
		}
	}
}

func (c *Client) Subscribe(ctx context.Context, scope string) (<-chan storage.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, storage.ErrClosed
	}
	s := &subscriber{scope: scope, ch: make(chan storage.Change, subscriberBuffer)}
	c.subs[s] = struct{}{}
	go func() {
		<-ctx.Done()
		c.unsubscribe(s)
	}()
	return s.ch, nil
}

func (c *Client) unsubscribe(s *subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[s]; !ok {
		return
	}
	delete(c.subs, s)
	close(s.ch)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for s := range c.subs {
		delete(c.subs, s)
		close(s.ch)
	}
	return nil
}
