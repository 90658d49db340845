package devstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/storage"
)

const (
	notifyChannel        = "kv_events"
	subscriberBuffer     = 64
	listenConnectTimeout = 10 * time.Second
)

type subscriber struct {
	scope string
	ch    chan storage.Change
}

// Client хранит скоупы в таблице kv_entries (Postgres, в -dev — embedded).
// Изменения рассылаются через pg_notify в той же транзакции, что и запись, поэтому
// уведомление уходит только после коммита. Сессии переживают перезапуск консоли.
type Client struct {
	pool *pgxpool.Pool

	mu         sync.Mutex
	subs       map[*subscriber]struct{}
	listening  bool
	stopListen context.CancelFunc
	listenDone chan struct{}
	closed     bool
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool, subs: make(map[*subscriber]struct{})}
}

func (c *Client) Get(ctx context.Context, scope, key string) (string, bool, error) {
	defer logger.DeferLogDuration("devstore.Get", time.Now())()
	var val string
	err := c.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE scope = $1 AND key = $2`, scope, key).Scan(&val)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("devstore.Get: %w", err)
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, scope, key, value string) error {
	defer logger.DeferLogDuration("devstore.Set", time.Now())()
	return c.inTx(ctx, storage.Change{Scope: scope, Key: key, Value: value}, func(tx pgx.Tx) (bool, error) {
		_, err := tx.Exec(ctx,
			`INSERT INTO kv_entries (scope, key, value, updated_at) VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			scope, key, value)
		return true, err
	})
}

func (c *Client) Remove(ctx context.Context, scope, key string) error {
	defer logger.DeferLogDuration("devstore.Remove", time.Now())()
	return c.inTx(ctx, storage.Change{Scope: scope, Key: key, Removed: true}, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE scope = $1 AND key = $2`, scope, key)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	})
}

func (c *Client) Clear(ctx context.Context, scope string) error {
	defer logger.DeferLogDuration("devstore.Clear", time.Now())()
	return c.inTx(ctx, storage.Change{Scope: scope, Removed: true}, func(tx pgx.Tx) (bool, error) {
		_, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE scope = $1`, scope)
		return true, err
	})
}

// inTx выполняет op и, если op сообщил об изменении, публикует ch в той же транзакции.
func (c *Client) inTx(ctx context.Context, ch storage.Change, op func(pgx.Tx) (bool, error)) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		changed, err := op(tx)
		if err != nil || !changed {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
		return err
	})
	if err != nil {
		return fmt.Errorf("devstore.write %s/%s: %w", ch.Scope, ch.Key, err)
	}
	return nil
}

// Subscribe подписывает на изменения скоупа. Все подписчики Client делят одно соединение
// с LISTEN kv_events, открытое вне пула: вкладки не занимают соединения, нужные Get/Set.
// Канал возвращается после того, как LISTEN выполнен.
func (c *Client) Subscribe(ctx context.Context, scope string) (<-chan storage.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, storage.ErrClosed
	}
	if !c.listening {
		if err := c.startListenerLocked(ctx); err != nil {
			return nil, err
		}
	}
	return c.addLocked(ctx, scope).ch, nil
}

func (c *Client) startListenerLocked(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, listenConnectTimeout)
	defer cancel()
	conn, err := pgx.ConnectConfig(connectCtx, c.pool.Config().ConnConfig)
	if err != nil {
		return fmt.Errorf("devstore.Subscribe connect: %w", err)
	}
	if _, err := conn.Exec(connectCtx, "LISTEN "+notifyChannel); err != nil {
		closeConn(conn)
		return fmt.Errorf("devstore.Subscribe listen: %w", err)
	}
	listenCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.listening, c.stopListen, c.listenDone = true, stop, done
	go c.listen(listenCtx, conn, done)
	return nil
}

// listen читает уведомления до остановки. При обрыве соединения подписчики отключаются,
// следующий Subscribe откроет соединение заново.
func (c *Client) listen(ctx context.Context, conn *pgx.Conn, done chan struct{}) {
	defer close(done)
	defer closeConn(conn)
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Errorf("devstore wait notification: %v", err)
				c.dropListener(done)
			}
			return
		}
		c.dispatch(n.Payload)
	}
}

func closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		logger.Errorf("devstore close listen conn: %v", err)
	}
}

// dispatch раздаёт изменение подписчикам его скоупа, не блокируясь на медленных.
func (c *Client) dispatch(payload string) {
	var ch storage.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		logger.Errorf("devstore kv event decode: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
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

// addLocked регистрирует подписчика; он снимается при отмене ctx.
func (c *Client) addLocked(ctx context.Context, scope string) *subscriber {
	s := &subscriber{scope: scope, ch: make(chan storage.Change, subscriberBuffer)}
	c.subs[s] = struct{}{}
	go func() {
		<-ctx.Done()
		c.unsubscribe(s)
	}()
	return s
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

func (c *Client) dropListener(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listenDone != done {
		return
	}
	c.stopListen()
	c.listening, c.stopListen, c.listenDone = false, nil, nil
	c.closeSubsLocked()
}

func (c *Client) closeSubsLocked() {
	for s := range c.subs {
		delete(c.subs, s)
		close(s.ch)
	}
}

// Close закрывает подписки и соединение LISTEN. Пул не закрывается: им владеет вызывающий код.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeSubsLocked()
	stop, done := c.stopListen, c.listenDone
	c.listening, c.stopListen, c.listenDone = false, nil, nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	return nil
}
