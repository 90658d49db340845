package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/middleware"
	"github.com/hospitalbooking/internal/session"
	"github.com/hospitalbooking/internal/storage"
	"github.com/hospitalbooking/internal/voiceflow"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 64
)

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Conn — то, что клиенту нужно от *websocket.Conn.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client — одна открытая вкладка консоли. У каждой вкладки свой session.Manager
// над общим скоупом профиля, свой guard.Watcher и своё демо voice-flow.
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump, watch] -> Close -> Wait.
type Client struct {
	id        string
	hub       *Hub
	conn      Conn
	send      chan OutgoingMessage
	profileID string
	path      string

	manager *session.Manager
	watcher *guard.Watcher
	flow    *voiceflow.Flow
	unsub   func()

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// NewClient создаёт вкладку для профиля profileID, открытую на path.
func NewClient(hub *Hub, conn Conn, profileID, path string) *Client {
	return &Client{
		id:        uuid.NewString(),
		hub:       hub,
		conn:      conn,
		send:      make(chan OutgoingMessage, sendBufSize),
		profileID: profileID,
		path:      path,
		manager:   session.NewManager(hub.store, profileID),
		flow:      voiceflow.New(),
		done:      make(chan struct{}),
	}
}

// Start подписывается на изменения скоупа, разрешает сессию, отправляет вкладке начальное
// состояние и запускает насосы чтения/записи. Подписка идёт раньше чтения токена,
// иначе выход в другой вкладке между ними остался бы незамеченным.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel

	changes, listenErr := c.manager.Listen(ctx)
	st := c.manager.Initialize(ctx)
	c.watcher = guard.NewWatcher(c.hub.table, c.manager, c.path, c.onOutcome)
	c.unsub = c.manager.Subscribe(c.onState)

	c.trySend(OutgoingMessage{Type: EventSession, Payload: st})
	if out := c.watcher.Current(); out.Decision.IsRedirect() {
		c.trySend(OutgoingMessage{Type: EventNavigate, Payload: navigatePayload(out)})
	}
	if out := c.watcher.Current(); out.Route.Path == guard.PathVoiceFlow {
		c.trySend(OutgoingMessage{Type: EventVoiceStep, Payload: voiceStepPayload(c.flow.Snapshot())})
	}

	c.wg.Add(3)
	go c.writePump(ctx)
	go c.readPump(ctx)
	go c.watch(ctx, changes, listenErr)
}

func (c *Client) Wait() {
	c.wg.Wait()
}

// Close останавливает вкладку. Безопасно вызывать повторно из любой горутины.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		if c.watcher != nil {
			c.watcher.Stop()
		}
		if c.unsub != nil {
			c.unsub()
		}
		c.conn.Close()
	})
}

func (c *Client) ID() string { return c.id }

// Session возвращает менеджер сессии вкладки.
func (c *Client) Session() *session.Manager {
	return c.manager
}

func (c *Client) onState(st session.State) {
	c.trySend(OutgoingMessage{Type: EventSession, Payload: st})
}

func (c *Client) onOutcome(out guard.Outcome) {
	if out.Decision.IsRedirect() {
		c.trySend(OutgoingMessage{Type: EventNavigate, Payload: navigatePayload(out)})
	}
}

func (c *Client) trySend(msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		logger.Errorf("ws send buffer full, closing slow tab profile=%s", middleware.MaskID(c.profileID))
		c.Close()
	}
}

func (c *Client) watch(ctx context.Context, changes <-chan storage.Change, listenErr error) {
	defer c.wg.Done()
	if listenErr != nil {
		logger.Errorf("ws watch profile=%s: %v", middleware.MaskID(c.profileID), listenErr)
		c.Close()
		return
	}
	c.manager.Follow(ctx, changes)
	if ctx.Err() == nil {
		logger.Infof("ws change stream closed profile=%s, closing tab", middleware.MaskID(c.profileID))
		c.Close()
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline profile=%s: %v", middleware.MaskID(c.profileID), err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error profile=%s: %v", middleware.MaskID(c.profileID), err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.trySend(OutgoingMessage{Type: EventError, Payload: "malformed message"})
			continue
		}
		c.hub.HandleMessage(c, msg)
	}
}

func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			if err := json.NewEncoder(buf).Encode(msg); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error profile=%s: %v", middleware.MaskID(c.profileID), err)
				continue
			}
			data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
