package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages buffered per client before it is dropped as too slow.
	sendBuffer = 16
)

// Message types sent to live reload clients.
const (
	MessageCSSUpdate  = "css_update"
	MessageFullReload = "full_reload"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// client is one connected browser.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans reload messages out to every connected client.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.RWMutex
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	logger     logging.Logger
}

// NewHub creates a hub. Run must be called before clients connect.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("livereload"),
	}
}

// Run services the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client connected", "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client disconnected", "clients", n)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Too slow to keep up.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. It is dropped if the hub is not
// running.
func (h *Hub) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		data = []byte(`{"type":"full_reload"}`)
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// ServeHTTP upgrades the request and registers the connection. Origins
// other than the request host are rejected by websocket.Accept.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	// Clients never send anything; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(context.Background())
	h.writePump(ctx, c)
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// changeMessages turns a batch of public root changes into reload
// messages. A batch of stylesheets only is swapped in place; anything else
// reloads the page.
func changeMessages(root string, events []watcher.ChangeEvent) []UpdateMessage {
	var targets []string
	for _, e := range events {
		ext := strings.ToLower(filepath.Ext(e.Path))
		if ext != ".css" && ext != ".map" {
			return []UpdateMessage{{Type: MessageFullReload}}
		}
		if ext == ".map" {
			continue
		}
		rel, err := filepath.Rel(root, e.Path)
		if err != nil {
			return []UpdateMessage{{Type: MessageFullReload}}
		}
		targets = append(targets, "/"+filepath.ToSlash(rel))
	}

	msgs := make([]UpdateMessage, 0, len(targets))
	for _, t := range targets {
		msgs = append(msgs, UpdateMessage{Type: MessageCSSUpdate, Target: t})
	}
	return msgs
}

// clientScript is appended to served HTML when live reload is enabled.
const clientScript = `<script>
(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + LiveReloadPath + `";
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "css_update") {
        var links = document.querySelectorAll('link[rel="stylesheet"]');
        var swapped = false;
        for (var i = 0; i < links.length; i++) {
          var href = new URL(links[i].href, location.href);
          if (href.pathname === msg.target) {
            href.searchParams.set("sitepipe", Date.now());
            links[i].href = href.toString();
            swapped = true;
          }
        }
        if (!swapped) location.reload();
      } else if (msg.type === "full_reload") {
        location.reload();
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
`

// injectClient inserts the live reload script before the last </body>, or
// appends it when there is none.
func injectClient(page []byte) []byte {
	lower := strings.ToLower(string(page))
	i := strings.LastIndex(lower, "</body>")
	if i < 0 {
		return append(append([]byte(nil), page...), clientScript...)
	}
	out := make([]byte, 0, len(page)+len(clientScript))
	out = append(out, page[:i]...)
	out = append(out, clientScript...)
	return append(out, page[i:]...)
}
