// Package ws owns the live client connections of one server process: it
// assigns player ids, decodes inbound commands, enforces liveness with a
// periodic ping sweep, and writes outbound commands to sockets on behalf of
// the relay. What the commands mean is decided above it, by whatever
// Handler is wired in.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gamelobby/arena/internal/protocol"
)

// DefaultPingInterval is the liveness sweep period. A connection survives a
// sweep only if it answered the ping from the previous one, so clients get
// one full interval of grace.
const DefaultPingInterval = 30 * time.Second

// Handler receives connection lifecycle events and inbound commands. A
// non-nil error from Command makes the server reply with the generic error
// message; the connection itself is never torn down for a bad command.
type Handler interface {
	Connect(playerID string)
	Command(ctx context.Context, playerID string, cmd protocol.ClientCommand) error
	Disconnect(playerID string)
}

// Server accepts WebSocket connections and maps them to player ids. The
// map is process-scoped: created when the server starts and gone when the
// process exits, by design never shared across processes.
type Server struct {
	handler      Handler
	log          *logrus.Entry
	pingInterval time.Duration

	mu    sync.Mutex
	conns map[string]*conn
}

type conn struct {
	id        string
	ws        *websocket.Conn
	confirmed bool // answered the ping from the previous sweep

	writeMu sync.Mutex
}

// NewServer creates a connection server. pingInterval <= 0 selects the
// default.
func NewServer(handler Handler, pingInterval time.Duration, log *logrus.Entry) *Server {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &Server{
		handler:      handler,
		log:          log,
		pingInterval: pingInterval,
		conns:        make(map[string]*conn),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	s.serve(r.Context(), sock)
}

// serve registers the connection under a fresh player id and pumps inbound
// messages to the handler until the socket dies.
func (s *Server) serve(ctx context.Context, sock *websocket.Conn) {
	c := &conn{id: uuid.NewString(), ws: sock, confirmed: true}

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	s.log.WithField("player", c.id).Info("client connected")
	s.handler.Connect(c.id)

	defer func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		_ = sock.CloseNow()
		s.log.WithField("player", c.id).Info("client disconnected")
		s.handler.Disconnect(c.id)
	}()

	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			return
		}
		var cmd protocol.ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reject(ctx, c)
			continue
		}
		if err := s.handler.Command(ctx, c.id, cmd); err != nil {
			s.log.WithError(err).WithField("player", c.id).Debug("command rejected")
			s.reject(ctx, c)
		}
	}
}

// reject replies with the generic error to this one connection only.
func (s *Server) reject(ctx context.Context, c *conn) {
	if err := c.write(ctx, protocol.ErrorReply()); err != nil {
		s.log.WithError(err).WithField("player", c.id).Debug("error reply failed")
	}
}

// Deliver writes a command to the player's socket, satisfying the relay's
// LocalSender. Unknown players — already disconnected — are a no-op.
func (s *Server) Deliver(playerID string, cmd protocol.ServerCommand) {
	s.mu.Lock()
	c := s.conns[playerID]
	s.mu.Unlock()
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.write(ctx, cmd); err != nil {
		s.log.WithError(err).WithField("player", playerID).Debug("deliver failed")
	}
}

func (c *conn) write(ctx context.Context, cmd protocol.ServerCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Run drives the liveness sweep until ctx is cancelled. Each sweep
// terminates every connection that never answered the previous sweep's
// ping, then marks the rest unconfirmed and pings them again.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	s.mu.Lock()
	var stale, live []*conn
	for _, c := range s.conns {
		if c.confirmed {
			c.confirmed = false
			live = append(live, c)
		} else {
			stale = append(stale, c)
		}
	}
	s.mu.Unlock()

	for _, c := range stale {
		s.log.WithField("player", c.id).Warn("terminating unresponsive connection")
		_ = c.ws.Close(websocket.StatusPolicyViolation, "ping timeout")
	}
	for _, c := range live {
		go s.ping(ctx, c)
	}
}

// ping confirms the connection when the pong arrives within one sweep
// window.
func (s *Server) ping(ctx context.Context, c *conn) {
	pctx, cancel := context.WithTimeout(ctx, s.pingInterval)
	defer cancel()
	if err := c.ws.Ping(pctx); err != nil {
		return
	}
	s.mu.Lock()
	c.confirmed = true
	s.mu.Unlock()
}

// CloseAll terminates every live connection, used at shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
