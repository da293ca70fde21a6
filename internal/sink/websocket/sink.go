// Package websocket streams records to browser clients as JSON messages.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/log"
	"firestige.xyz/sniffer/internal/sink"
)

const (
	Name = "websocket"

	writeWait  = 5 * time.Second
	sendBuffer = 512 // per client; packets are dropped when full
)

// Message is the envelope of everything sent to a client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type hello struct {
	Session string `json:"session"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Sink is a websocket hub. Write never blocks on a slow client.
type Sink struct {
	addr    string
	path    string
	session string

	server   *http.Server
	listener net.Listener

	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped atomic.Int64
}

var _ sink.Sink = (*Sink)(nil)

// NewSink creates a hub serving upgrades on addr at path. session is sent to
// every client when it connects.
func NewSink(addr, path, session string) *Sink {
	if path == "" {
		path = "/ws"
	}
	return &Sink{
		addr:    addr,
		path:    path,
		session: session,
		clients: make(map[*client]struct{}),
	}
}

// Start binds the listener and serves in the background.
func (s *Sink) Start() error {
	mux := http.NewServeMux()
	mux.Handle(s.path, s)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("websocket listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := log.GetLogger().WithFields(map[string]interface{}{"addr": ln.Addr().String(), "path": s.path})
	logger.Info("starting websocket server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("websocket server error")
		}
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Sink) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (s *Sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.GetLogger().WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	if msg, err := json.Marshal(Message{Type: "hello", Payload: hello{Session: s.session}}); err == nil {
		c.send <- msg
	}
	s.register(c)
	go c.writeLoop()
	c.readLoop()
	s.unregister(c)
}

func (s *Sink) Name() string { return Name }

// Write broadcasts rec to every connected client.
func (s *Sink) Write(rec core.Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.clients) == 0 {
		return nil
	}

	msg, err := json.Marshal(Message{Type: "packet", Payload: sink.NewDocument(rec)})
	if err != nil {
		return fmt.Errorf("encode record %d: %w", rec.Seq, err)
	}
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.dropped.Inc()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *Sink) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the server and disconnects every client.
func (s *Sink) Close() error {
	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	for c := range s.clients {
		c.stop()
		delete(s.clients, c)
	}
	s.mu.Unlock()
	return err
}

func (s *Sink) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	log.GetLogger().WithField("clients", n).Debug("websocket client connected")
}

func (s *Sink) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.stop()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// readLoop discards client input and returns when the connection fails.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
