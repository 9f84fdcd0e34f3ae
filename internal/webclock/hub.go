package webclock

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Message — кадр websocket для браузера.
type Message struct {
	Type    string  `json:"type"` // "display"
	Display Display `json:"display"`
}

// Hub — подключённые браузеры.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	stopped bool
}

// NewHub создаёт пустой хаб.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

// Broadcast рассылает состояние дисплея. Медленному клиенту кадр не достаётся.
func (h *Hub) Broadcast(d Display) {
	data, err := json.Marshal(Message{Type: "display", Display: d})
	if err != nil {
		log.Error("marshal display: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn("web client too slow, frame dropped")
		}
	}
}

// Count — число клиентов.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.clients {
		c.close()
	}
}

// serve регистрирует соединение, отправляет первое состояние и запускает насосы.
func (h *Hub) serve(conn *websocket.Conn, initial Display) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	if data, err := json.Marshal(Message{Type: "display", Display: initial}); err == nil {
		c.send <- data
	}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Info("web client connected (%d total)", n)

	go c.writePump()
	go c.readPump()
}

func (c *client) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("web write: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump нужен для pong и обнаружения отключения; входящие кадры не обрабатываются.
func (c *client) readPump() {
	defer func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		n := len(c.hub.clients)
		c.hub.mu.Unlock()
		c.close()
		log.Info("web client disconnected (%d remaining)", n)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("web read: %v", err)
			}
			return
		}
	}
}
