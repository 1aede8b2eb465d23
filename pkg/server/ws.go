package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yurifrl/coinbook/pkg/dataset"
	"github.com/yurifrl/coinbook/pkg/debounce"
	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/messages"
)

const (
	frameProgress = "progress"
	frameView     = "view"
	frameError    = "error"

	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// frame is pushed from the server to websocket clients.
type frame struct {
	Type    string        `json:"type"`
	Percent float64       `json:"percent,omitempty"`
	Status  string        `json:"status,omitempty"`
	Message string        `json:"message,omitempty"`
	View    *dataset.View `json:"view,omitempty"`
}

// command is sent by websocket clients.
//
//	search   debounced; keeps the current currency and status
//	filter   applies search, currency and status at once
//	reset    clears every filter
//	page     jumps to Page
//	next     one page forward
//	prev     one page back
type command struct {
	Type     string `json:"type"`
	Search   string `json:"search"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Page     int    `json:"page"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		s.logger.Warn("websocket upgrade failed", "err", err, "session", sess.id)
		return
	}
	c := &client{conn: conn}
	sess.attach(c)
	defer func() {
		sess.detach(c)
		c.close()
	}()

	s.logger.Debug("websocket attached", "session", sess.id, "remote", r.RemoteAddr)

	view := sess.store.View()
	if err := c.send(frame{Type: frameView, View: &view}); err != nil {
		return
	}

	search := debounce.New(s.config.Debounce, func(term string) {
		criteria := sess.store.Criteria()
		criteria.Search = term
		s.applyCommand(sess, func() error { return sess.store.ApplyFilters(criteria) })
	})
	defer search.Stop()

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(c, done)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "session", sess.id, "err", err)
			}
			return
		}

		switch cmd.Type {
		case "search":
			search.Trigger(cmd.Search)
		case "filter":
			search.Cancel()
			criteria := filter.Criteria{Search: cmd.Search, Currency: cmd.Currency, Status: cmd.Status}
			s.applyCommand(sess, func() error { return sess.store.ApplyFilters(criteria) })
		case "reset":
			search.Cancel()
			s.applyCommand(sess, sess.store.Reset)
		case "page":
			sess.store.SetPage(cmd.Page)
			s.publishView(sess)
		case "next":
			if sess.store.NextPage() {
				s.publishView(sess)
			}
		case "prev":
			if sess.store.PrevPage() {
				s.publishView(sess)
			}
		default:
			_ = c.send(frame{Type: frameError, Message: "unknown command " + cmd.Type})
		}
	}
}

// applyCommand runs a state change and publishes the new view, or the
// reason it was refused.
func (s *Server) applyCommand(sess *session, fn func() error) {
	if err := fn(); err != nil {
		sess.broadcast(s.logger, frame{Type: frameError, Message: messages.For(err)})
		return
	}
	s.publishView(sess)
}

func (s *Server) pingLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
