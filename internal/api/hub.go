package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/droneedit/droneedit-agent/internal/journal"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

// Event types pushed to panel clients.
const (
	EventAlert    = "alert"
	EventProgress = "progress"
	EventPrompt   = "prompt"
	EventTask     = "task"
)

var (
	// ErrNoClients means no panel page is connected to answer a prompt.
	ErrNoClients = errors.New("no panel connected")
	// ErrPromptCancelled means the panel dismissed the prompt.
	ErrPromptCancelled = errors.New("prompt cancelled")
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	maxReadBytes = 8 << 10
)

// Event is one message to the panel.
type Event struct {
	Type     string        `json:"type"`
	Title    string        `json:"title,omitempty"`
	Message  string        `json:"message,omitempty"`
	Percent  int           `json:"percent"`
	PromptID string        `json:"prompt_id,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Task     *TaskResponse `json:"task,omitempty"`
}

// clientMessage is what panel pages send back.
type clientMessage struct {
	Type     string `json:"type"` // "answer"
	PromptID string `json:"prompt_id"`
	Value    string `json:"value"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans events out to every connected panel page and routes prompt
// answers back to the waiting caller.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	prompts map[string]chan string
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		logger:  logging.WithComponent(logging.OrDiscard(logger), "panel-hub"),
		clients: map[*client]struct{}{},
		prompts: map[string]chan string{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || isAllowedOrigin(origin)
		},
	}
	return h
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan Event, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("panel client connected", "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxReadBytes)
	for {
		var m clientMessage
		if err := c.conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("panel client read failed", "error", err)
			}
			return
		}
		if m.Type == "answer" && !h.Answer(m.PromptID, m.Value) {
			h.logger.Debug("answer for unknown prompt", "prompt_id", m.PromptID)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// remove drops c. Caller must not hold h.mu.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Broadcast queues e for every client. Clients whose queue is full are
// disconnected.
func (h *Hub) Broadcast(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			h.logger.Warn("dropping slow panel client")
			h.dropLocked(c)
		}
	}
}

// Clients returns the number of connected panel pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Prompt asks the connected panels for a path and waits for the first
// answer. An empty answer is ErrPromptCancelled.
func (h *Hub) Prompt(ctx context.Context, title, kind string) (string, error) {
	id := journal.NewID()
	ch := make(chan string, 1)

	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return "", ErrNoClients
	}
	h.prompts[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.prompts, id)
		h.mu.Unlock()
	}()

	h.Broadcast(Event{Type: EventPrompt, PromptID: id, Title: title, Kind: kind})

	select {
	case v := <-ch:
		if v == "" {
			return "", ErrPromptCancelled
		}
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Answer delivers value to prompt id. It reports false when no such prompt
// is waiting.
func (h *Hub) Answer(id, value string) bool {
	h.mu.Lock()
	ch, ok := h.prompts[id]
	if ok {
		delete(h.prompts, id)
	}
	h.mu.Unlock()
	if ok {
		ch <- value
	}
	return ok
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}
