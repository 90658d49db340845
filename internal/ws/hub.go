package ws

import (
	"context"
	"sync"

	"github.com/hospitalbooking/internal/guard"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/middleware"
	"github.com/hospitalbooking/internal/storage"
)

// Hub ведёт учёт открытых вкладок, сгруппированных по профилю браузера.
// Синхронизация между вкладками идёт через хранилище, а не через хаб.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	total    int
	maxConns int

	store storage.Store
	table *guard.Table

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(store storage.Store, table *guard.Table, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	if table == nil {
		table = guard.DefaultTable()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		store:      store,
		table:      table,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting profile=%s", h.maxConns, middleware.MaskID(c.profileID))
		c.Close()
		return
	}
	if _, ok := h.clients[c.profileID]; !ok {
		h.clients[c.profileID] = make(map[*Client]struct{})
	}
	h.clients[c.profileID][c] = struct{}{}
	h.total++
	tabs := len(h.clients[c.profileID])
	h.mu.Unlock()
	logger.Debugf("ws tab %s opened profile=%s tabs=%d", c.id, middleware.MaskID(c.profileID), tabs)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.profileID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.profileID)
	}
	h.mu.Unlock()

	c.Close()
}

// HandleMessage обрабатывает сообщение вкладки.
func (h *Hub) HandleMessage(c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventRoute:
		if msg.Path == "" {
			c.trySend(OutgoingMessage{Type: EventError, Payload: "path required"})
			return
		}
		out := c.watcher.Navigate(msg.Path)
		if out.Decision.IsRedirect() {
			c.trySend(OutgoingMessage{Type: EventNavigate, Payload: navigatePayload(out)})
		}
		if out.Decision == guard.Allow && out.Route.Path == guard.PathVoiceFlow {
			c.trySend(OutgoingMessage{Type: EventVoiceStep, Payload: voiceStepPayload(c.flow.Snapshot())})
		}
	case EventVoiceAdvance:
		c.trySend(OutgoingMessage{Type: EventVoiceStep, Payload: voiceStepPayload(c.flow.Advance())})
	case EventVoiceReplay:
		c.trySend(OutgoingMessage{Type: EventVoiceStep, Payload: voiceStepPayload(c.flow.Replay())})
	default:
		c.trySend(OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

// Tabs — число открытых вкладок профиля.
func (h *Hub) Tabs(profileID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[profileID])
}

// Total — число открытых вкладок всех профилей.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
