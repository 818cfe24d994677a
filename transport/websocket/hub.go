package websocket

import (
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// Hub groups sessions by topic. Publishing only enqueues; a subscriber that
// cannot take the message is closed by its own Send.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Session
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]*Session)}
}

// Subscribe adds sess to topic. It reports false when already subscribed.
func (h *Hub) Subscribe(topic string, sess *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sess.Closed() || !sess.addTopic(topic) {
		return false
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]*Session)
		h.topics[topic] = subs
	}
	subs[sess.ID()] = sess
	return true
}

func (h *Hub) Unsubscribe(topic string, sess *Session) {
	sess.removeTopic(topic)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(topic, sess.ID())
}

// UnsubscribeAll drops sess from every topic it joined.
func (h *Hub) UnsubscribeAll(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range sess.Topics() {
		sess.removeTopic(topic)
		h.remove(topic, sess.ID())
	}
}

func (h *Hub) remove(topic, id string) {
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Publish enqueues data for every subscriber of topic and returns how many
// accepted it.
func (h *Hub) Publish(topic string, data []byte) int {
	h.mu.RLock()
	subs := make([]*Session, 0, len(h.topics[topic]))
	for _, s := range h.topics[topic] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if err := s.Send(data); err != nil {
			log.Debugf("publish skipped. topic=%q session=%q err=%v", topic, s.ID(), err)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers returns the number of sessions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
