package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	applog "studio/internal/log"
)

const writeTimeout = 5 * time.Second

// WebSocketTransport broadcasts events to every connected UI client and
// hands their commands to a CommandHandler. It is an http.Handler; mount it
// on the /ws route.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan interface{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	log       *zap.SugaredLogger

	onCommand   CommandHandler
	onConnect   func() []Event
	cmdRate     rate.Limit
	cmdBurst    int
	connections int
}

// Option configures a WebSocketTransport.
type Option func(*WebSocketTransport)

// WithCommandHandler sets the receiver of inbound commands.
func WithCommandHandler(h CommandHandler) Option {
	return func(w *WebSocketTransport) { w.onCommand = h }
}

// WithCommandRate limits inbound commands per client.
func WithCommandRate(perSecond float64, burst int) Option {
	return func(w *WebSocketTransport) {
		w.cmdRate = rate.Limit(perSecond)
		w.cmdBurst = burst
	}
}

// WithGreeting sets the events sent to a client right after it connects.
func WithGreeting(fn func() []Event) Option {
	return func(w *WebSocketTransport) { w.onConnect = fn }
}

// NewWebSocketTransport creates a new WebSocketTransport instance
func NewWebSocketTransport(opts ...Option) *WebSocketTransport {
	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The UI is served from the same local process
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan interface{}, 256),
		done:      make(chan struct{}),
		log:       applog.Named("websocket"),
		cmdRate:   rate.Inf,
		cmdBurst:  1,
	}
	for _, opt := range opts {
		opt(wst)
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// ServeHTTP upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnw("upgrade failed", "error", err)
		return
	}

	var greeting []Event
	if wst.onConnect != nil {
		greeting = wst.onConnect()
	}

	// Register client
	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[conn] = true
	wst.connections++
	for _, ev := range greeting {
		if err := wst.writeLocked(conn, ev); err != nil {
			break
		}
	}
	total := len(wst.clients)
	wst.wg.Add(1)
	wst.clientsMu.Unlock()
	wst.log.Infow("client connected", "remote", r.RemoteAddr, "total", total)

	go wst.readLoop(conn)
}

// readLoop decodes commands until the client goes away.
func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.wg.Done()
	limiter := rate.NewLimiter(wst.cmdRate, wst.cmdBurst)

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wst.log.Debugw("read failed", "error", err)
			}
			break
		}
		if cmd.Action == "" {
			continue
		}
		if !limiter.Allow() {
			wst.log.Warnw("command dropped, rate limit exceeded", "action", cmd.Action)
			continue
		}
		if wst.onCommand != nil {
			wst.onCommand(cmd)
		}
		if cmd.Event != nil {
			wst.clientsMu.Lock()
			if wst.clients[conn] {
				_ = wst.writeLocked(conn, Event{Type: CommandAck, Data: cmd})
			}
			wst.clientsMu.Unlock()
		}
	}

	wst.clientsMu.Lock()
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	wst.log.Infow("client disconnected", "total", total)
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				if err := wst.writeLocked(client, data); err != nil {
					wst.log.Debugw("send failed, dropping client", "error", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

func (wst *WebSocketTransport) writeLocked(conn *websocket.Conn, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(data)
}

// Send broadcasts data to all connected WebSocket clients
func (wst *WebSocketTransport) Send(data interface{}) error {
	select {
	case <-wst.done:
		return nil
	default:
	}
	select {
	case wst.broadcast <- data:
		// Message queued for broadcast
	default:
		// Channel full, drop message
		wst.log.Debugw("broadcast queue full, dropping event")
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close disconnects every client and stops broadcasting.
func (wst *WebSocketTransport) Close() error {
	wst.closeOnce.Do(func() {
		wst.clientsMu.Lock()
		wst.log.Infow("closing", "connections_served", wst.connections)
		close(wst.done)
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return nil
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
