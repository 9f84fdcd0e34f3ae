package webclock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dispatch"
	"github.com/shiwa/timecard-mini/dgtclock/internal/menu"
)

const maxBody = 64 << 10

// Backend — диспетчер глазами HTTP API.
type Backend interface {
	Submit(c *command.Command)
	Snapshot() []dispatch.DeviceStatus
	PriorityDevice() string
	TimeFactor() float64
	Pending() int
}

// Status — ответ GET /api/status.
type Status struct {
	Devices    []dispatch.DeviceStatus `json:"devices"`
	Priority   string                  `json:"priority"`
	TimeFactor float64                 `json:"time_factor"`
	Pending    int                     `json:"pending"`
	Menu       menu.Snapshot           `json:"menu"`
	Display    Display                 `json:"display"`
	Clients    int                     `json:"clients"`
}

// MenuRequest — тело POST /api/menu.
type MenuRequest struct {
	UpdateMenu bool `json:"update_menu"`
}

// SubmitResponse — ответ POST /api/commands.
type SubmitResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// ServerOptions — параметры HTTP сервера.
type ServerOptions struct {
	Listen      string
	CommandRate float64 // команд в секунду; <= 0 — без ограничения
}

// Server — HTTP + websocket сервер виртуальных часов.
type Server struct {
	opts    ServerOptions
	backend Backend
	menu    *menu.State
	clock   *Clock
	hub     *Hub
	limiter *rate.Limiter

	upgrader websocket.Upgrader
	ln       net.Listener
	srv      *http.Server
}

// NewServer создаёт сервер вместе с часами "web"; часы регистрируются в диспетчере отдельно.
func NewServer(opts ServerOptions, backend Backend, m *menu.State) *Server {
	if m == nil {
		m = menu.New()
	}
	limit := rate.Inf
	burst := 1
	if opts.CommandRate > 0 {
		limit = rate.Limit(opts.CommandRate)
		burst = max(int(opts.CommandRate), 1)
	}
	s := &Server{
		opts:    opts,
		backend: backend,
		menu:    m,
		hub:     NewHub(),
		limiter: rate.NewLimiter(limit, burst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.clock = NewClock(s.hub.Broadcast)
	return s
}

// Clock — драйвер "web".
func (s *Server) Clock() *Clock { return s.clock }

// Hub — подключённые браузеры.
func (s *Server) Hub() *Hub { return s.hub }

// Handler — маршруты API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /api/commands", s.handleCommand)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/menu", s.handleMenu)
	return mux
}

// Listen открывает сокет; после него известен порт для mDNS.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("web listen %s: %w", s.opts.Listen, err)
	}
	s.ln = ln
	return nil
}

// Port — порт открытого сокета (0 до Listen).
func (s *Server) Port() int {
	if s.ln == nil {
		return 0
	}
	if a, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Serve обслуживает запросы до отмены ctx. Сначала часы "web" объявляют себя диспетчеру.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.backend.Submit(command.New(command.ClockVersion{Main: 2, Sub: 2, Variant: "web"}, command.To(command.DeviceWeb)))
	log.Info("web clock listening on %s", s.ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("web shutdown: %v", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade: %v", err)
		return
	}
	s.hub.serve(conn, s.clock.Display())
}

// handleCommand принимает команду JSON или строку грамматики CLI (text/plain).
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, errors.New("too many commands"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var c *command.Command
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		c, err = command.Parse(strings.Fields(string(body)))
	} else {
		c = new(command.Command)
		err = json.Unmarshal(body, c)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log.Debug("api command %s", c)
	s.backend.Submit(c)
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: c.ID.String(), Kind: c.Kind().String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() Status {
	devices := s.backend.Snapshot()
	if devices == nil {
		devices = []dispatch.DeviceStatus{}
	}
	return Status{
		Devices:    devices,
		Priority:   s.backend.PriorityDevice(),
		TimeFactor: s.backend.TimeFactor(),
		Pending:    s.backend.Pending(),
		Menu:       s.menu.Snapshot(),
		Display:    s.clock.Display(),
		Clients:    s.hub.Count(),
	}
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	var req MenuRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.menu.SetUpdateMenu(req.UpdateMenu)
	log.Info("update menu %v", req.UpdateMenu)
	writeJSON(w, http.StatusOK, s.menu.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
