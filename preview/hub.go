package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
)

const (
	msgRender   = "render"
	msgRendered = "rendered"
	msgProgress = "progress"

	sendBuffer   = 16
	writeTimeout = 5 * time.Second
	maxFrameSize = 4 << 20
)

type message struct {
	Type     string    `json:"type"`
	ID       string    `json:"id,omitempty"`
	Source   string    `json:"source,omitempty"`
	Valid    bool      `json:"valid,omitempty"`
	Artifact string    `json:"artifact,omitempty"`
	Progress *Snapshot `json:"progress,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub is a Renderer backed by browser previewers connected over websocket.
// Render requests are broadcast to every previewer; the first answer carrying the request's
// correlation id wins and answers with unknown ids are dropped.
type Hub struct {
	timeout  time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	pending map[string]chan *Result
	latest  string
	closed  bool
	wg      sync.WaitGroup
}

type HubOption func(*Hub)

// WithTimeout sets the render round-trip bound. Default is 7 seconds.
func WithTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		h.timeout = d
	}
}

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(options ...HubOption) *Hub {
	h := &Hub{
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		pending: make(map[string]chan *Result),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Clients returns the number of connected previewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Latest returns the most recent source sent for rendering.
func (h *Hub) Latest() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Render broadcasts source and waits for the correlated answer.
func (h *Hub) Render(ctx context.Context, source string) (*Result, error) {
	id := uuid.NewString()
	ch := make(chan *Result, 1)

	h.mu.Lock()
	h.latest = source
	if h.closed || len(h.clients) == 0 {
		h.mu.Unlock()
		h.logger.Debug("no previewer connected", "id", id)
		return Unavailable(id), nil
	}
	h.pending[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	if err := h.broadcast(&message{Type: msgRender, ID: id, Source: source}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		h.logger.Warn("preview timed out", "id", id, "timeout", h.timeout)
		return Unavailable(id), nil
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "preview cancelled", goerr.V("id", id))
	}
}

// Notify sends a progress snapshot to every previewer. Delivery is best effort.
func (h *Hub) Notify(ctx context.Context, s *Snapshot) {
	if err := h.broadcast(&message{Type: msgProgress, Progress: s}); err != nil {
		h.logger.Warn("failed to broadcast progress", "error", err)
	}
}

func (h *Hub) broadcast(msg *message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal preview message", goerr.V("type", msg.Type))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			h.logger.Warn("previewer send buffer full, dropping message", "type", msg.Type)
		}
	}
	return nil
}

// ServeWS upgrades the request and serves one previewer until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade previewer connection", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()
	h.logger.Info("previewer connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()

	for raw := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			h.logger.Warn("failed to write to previewer", "error", err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
		h.logger.Info("previewer disconnected")
	}()

	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != msgRendered {
			continue
		}
		h.deliver(&Result{ID: msg.ID, Valid: msg.Valid, Artifact: msg.Artifact})
	}
}

func (h *Hub) deliver(res *Result) {
	h.mu.Lock()
	ch, ok := h.pending[res.ID]
	if ok {
		delete(h.pending, res.ID)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("dropping preview answer with unknown id", "id", res.ID)
		return
	}
	ch <- res
}

// Close disconnects every previewer and waits for their goroutines to exit.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		c.close()
		_ = c.conn.SetReadDeadline(time.Now())
		delete(h.clients, c)
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}
