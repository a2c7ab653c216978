// Package ws is the session manager: it accepts WebSocket connections,
// runs the per-session reader and writer goroutines, enforces the
// inbound rate limit and the heartbeat, and bridges frames into the
// world router.
package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"aetharia.world/internal/metrics"
	"aetharia.world/internal/sim/world"
)

const (
	outboxDepth  = 64
	writeTimeout = 5 * time.Second
)

type Config struct {
	HeartbeatInterval  time.Duration // default 30s
	MinMessageInterval time.Duration // default 50ms
	MaxFrameBytes      int64
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MinMessageInterval <= 0 {
		c.MinMessageInterval = 50 * time.Millisecond
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 64 * 1024
	}
	return c
}

type Server struct {
	world *world.World
	cfg   Config
	log   *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id   string
	conn *websocket.Conn
	out  world.Outbox

	done chan struct{}

	mu           sync.Mutex
	awaitingPong bool
}

func NewServer(w *world.World, cfg Config, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cfg:   cfg.withDefaults(),
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
}

// Handler upgrades and runs one session for the lifetime of the
// connection. Closing the session destroys its player.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}

		sess := &session{
			id:   uuid.NewString(),
			conn: conn,
			out:  make(world.Outbox, outboxDepth),
			done: make(chan struct{}),
		}
		s.track(sess)
		metrics.SessionsOpen.Inc()
		s.log.Printf("session %s connected from %s", sess.id, r.RemoteAddr)

		welcome := s.world.Join(sess.id, sess.out)
		if err := writeJSON(conn, welcome); err != nil {
			s.teardown(sess)
			return
		}

		go s.writeLoop(sess)
		s.readLoop(sess)
		s.teardown(sess)
	}
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

func (s *Server) teardown(sess *session) {
	s.mu.Lock()
	if _, ok := s.sessions[sess.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	close(sess.done)
	_ = sess.conn.Close()
	s.world.Leave(sess.id)
	metrics.SessionsOpen.Dec()
	s.log.Printf("session %s closed", sess.id)
}

// readLoop handles inbound frames in arrival order. Messages arriving
// faster than the per-session minimum interval are dropped silently so
// a flood cannot be amplified into error replies.
func (s *Server) readLoop(sess *session) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("session %s reader panic: %v", sess.id, r)
		}
	}()

	sess.conn.SetReadLimit(s.cfg.MaxFrameBytes)
	deadline := 2*s.cfg.HeartbeatInterval + writeTimeout
	_ = sess.conn.SetReadDeadline(time.Now().Add(deadline))
	sess.conn.SetPongHandler(func(string) error {
		sess.mu.Lock()
		sess.awaitingPong = false
		sess.mu.Unlock()
		_ = sess.conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	var lastAccepted time.Time
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		now := time.Now()
		if now.Sub(lastAccepted) < s.cfg.MinMessageInterval {
			metrics.MessagesRateLimited.Inc()
			continue
		}
		lastAccepted = now
		s.world.Handle(sess.id, raw)
	}
}

// writeLoop drains the outbox and drives the heartbeat. A session
// whose previous ping went unanswered is closed hard.
func (s *Server) writeLoop(sess *session) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case buf, ok := <-sess.out:
			if !ok {
				return
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				// Socket write failure: mark closing; the reader's
				// error path tears the session down.
				_ = sess.conn.Close()
				return
			}
		case <-ticker.C:
			sess.mu.Lock()
			stale := sess.awaitingPong
			sess.awaitingPong = true
			sess.mu.Unlock()
			if stale {
				s.log.Printf("session %s heartbeat timeout", sess.id)
				_ = sess.conn.Close()
				return
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = sess.conn.Close()
				return
			}
		}
	}
}

// CloseAll tears down every live session, for graceful shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()
	for _, sess := range open {
		s.teardown(sess)
	}
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
