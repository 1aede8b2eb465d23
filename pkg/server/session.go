package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yurifrl/coinbook/pkg/dataset"
)

const writeTimeout = 10 * time.Second

// session is one browser tab: a dataset plus the sockets watching it.
type session struct {
	id      string
	created time.Time
	store   *dataset.Store

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newSession(store *dataset.Store) *session {
	return &session{
		id:      uuid.NewString(),
		created: time.Now(),
		store:   store,
		clients: make(map[*client]struct{}),
	}
}

func (s *session) attach(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *session) detach(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// broadcast sends f to every attached socket. Sockets that fail are dropped.
func (s *session) broadcast(logger *log.Logger, f frame) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(f); err != nil {
			logger.Debug("dropping websocket client", "session", s.id, "err", err)
			s.detach(c)
			c.close()
		}
	}
}

func (s *session) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
		delete(s.clients, c)
	}
}

// client serializes writes to one websocket connection.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *client) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.Close()
}
