package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tileplay/carcassonne/library/xgo"
)

var (
	errSessionClosed = errors.New("session: closed send")
	errSlowConsumer  = errors.New("session: send buffer full")
)

type iHandler interface {
	// OnSessionOpen runs once the connection is upgraded.
	OnSessionOpen(sess *Session)
	// OnSessionClose runs once, after the connection is closed.
	OnSessionClose(sess *Session)
	// DispatchMessage handles one inbound text frame.
	DispatchMessage(sess *Session, data []byte)
}

type SessionConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadDeadline time.Duration
	SendChanSize int
	ReadLimit    int64
	RateLimit    rate.Limit // inbound frames per second, 0 disables
	RateBurst    int
}

// Session is one websocket connection. Writes go through a buffered
// channel drained by a single writer goroutine.
type Session struct {
	id         string
	subject    atomic.Value // string
	h          iHandler
	connMu     sync.Mutex
	conn       *websocket.Conn
	config     *SessionConfig
	limiter    *rate.Limiter
	sendChan   chan []byte
	closed     atomic.Bool
	lastActive atomic.Value // time.Time
	dropped    atomic.Int64
	ctx        context.Context
	cancel     context.CancelFunc
	sendMu     sync.Mutex

	topicMu sync.Mutex
	topics  map[string]struct{}
}

func newSession(h iHandler, conn *websocket.Conn, config *SessionConfig, subject string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       uuid.New().String(),
		h:        h,
		conn:     conn,
		config:   config,
		sendChan: make(chan []byte, config.SendChanSize),
		ctx:      ctx,
		cancel:   cancel,
		topics:   make(map[string]struct{}),
	}
	if config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(config.RateLimit, max(config.RateBurst, 1))
	}
	s.subject.Store(subject)
	s.lastActive.Store(time.Now())
	return s
}

// NewSession starts the pumps of an upgraded connection.
func NewSession(h iHandler, conn *websocket.Conn, config *SessionConfig, subject string) *Session {
	s := newSession(h, conn, config, subject)
	if config.ReadLimit > 0 {
		conn.SetReadLimit(config.ReadLimit)
	}
	conn.SetPongHandler(func(string) error {
		s.lastActive.Store(time.Now())
		return nil
	})
	s.h.OnSessionOpen(s)
	go s.readPump()
	go s.writePump()
	go s.heartbeat()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Subject is the authenticated identity of the connection, empty when the
// server runs without an authenticator.
func (s *Session) Subject() string {
	v, _ := s.subject.Load().(string)
	return v
}

func (s *Session) GetRemoteIP() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

func (s *Session) LastActive() time.Time {
	return s.lastActive.Load().(time.Time)
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Dropped counts inbound frames discarded by the rate limiter.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Send enqueues message without waiting. A session whose buffer is full is
// closed: it cannot keep up with its topics.
func (s *Session) Send(message []byte) error {
	err := s.enqueue(message)
	if errors.Is(err, errSlowConsumer) {
		log.Warnf("sessionID=%q send buffer full (%d), closing", s.id, cap(s.sendChan))
		s.Close(true)
	}
	return err
}

func (s *Session) enqueue(message []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.Closed() {
		return errSessionClosed
	}
	select {
	case s.sendChan <- message:
		return nil
	default:
		return errSlowConsumer
	}
}

func (s *Session) addTopic(topic string) bool {
	s.topicMu.Lock()
	defer s.topicMu.Unlock()
	if _, ok := s.topics[topic]; ok {
		return false
	}
	s.topics[topic] = struct{}{}
	return true
}

func (s *Session) removeTopic(topic string) {
	s.topicMu.Lock()
	defer s.topicMu.Unlock()
	delete(s.topics, topic)
}

// Topics returns the topics this session is subscribed to.
func (s *Session) Topics() []string {
	s.topicMu.Lock()
	defer s.topicMu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Session) readPump() {
	defer xgo.RecoverFromError(nil)
	defer s.Close(false)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.ReadDeadline)); err != nil {
			log.Errorf("sessionID=%q set read deadline error: %v", s.id, err)
			return
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("sessionID=%q unexpected close: %v", s.id, err)
			}
			return
		}

		s.lastActive.Store(time.Now())

		if s.limiter != nil && !s.limiter.Allow() {
			n := s.dropped.Add(1)
			log.Debugf("sessionID=%q rate limited, dropped=%d", s.id, n)
			continue
		}

		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			s.h.DispatchMessage(s, data)
		default:
			log.Warnf("sessionID=%q unsupported message type: %d", s.id, msgType)
		}
	}
}

func (s *Session) writePump() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.sendChan:
			if !ok {
				return
			}
			if err := s.writeMessage(websocket.TextMessage, msg); err != nil {
				if errors.Is(err, errSessionClosed) || strings.Contains(err.Error(), "close sent") {
					log.Infof("sessionID=%q write aborted, reason: %v", s.id, err)
				} else {
					log.Errorf("sessionID=%q write error: %v", s.id, err)
				}
				s.Close(true)
				return
			}
		}
	}
}

func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			if s.Closed() {
				return
			}
			if time.Since(s.LastActive()) > s.config.ReadDeadline {
				log.Warnf("sessionID=%q heartbeat timeout", s.id)
				s.Close(true)
				return
			}
			s.writeControl(websocket.PingMessage, nil)
		}
	}
}

// Close shuts the connection once and reports whether this call did it.
func (s *Session) Close(force bool) bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}

	if s.conn != nil {
		s.closeNotify(force)
	}

	s.cancel()

	s.sendMu.Lock()
	close(s.sendChan)
	s.sendMu.Unlock()

	if s.conn != nil {
		s.connMu.Lock()
		_ = s.conn.Close()
		s.connMu.Unlock()
	}

	s.h.OnSessionClose(s)
	return true
}

func (s *Session) closeNotify(force bool) {
	s.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReason(force, s)))
}

func closeReason(force bool, s *Session) string {
	if !force {
		return "Normal Closure"
	}
	if time.Since(s.LastActive()) > s.config.ReadDeadline {
		return "Force Closure (Heartbeat timeout)"
	}
	return "Force Closure"
}

func (s *Session) writeControl(msgType int, data []byte) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	_ = s.conn.WriteControl(msgType, data, time.Now().Add(s.config.WriteTimeout))
}

func (s *Session) writeMessage(msgType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.Closed() {
		return errSessionClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(msgType, data)
}
