package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages subscriptions by topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Subscriber]struct{}
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[Subscriber]struct{})}
}

// Subscription is the handle returned by Subscribe. Closing it removes the
// subscriber from the topic; closing twice is a no-op.
type Subscription struct {
	hub    *Hub
	topic  string
	client Subscriber
	once   sync.Once
}

func (s *Subscription) Topic() string {
	return s.topic
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.topic, s.client)
	})
}

// Subscribe adds client to topic.
func (h *Hub) Subscribe(topic string, client Subscriber) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[Subscriber]struct{})
	}
	h.clients[topic][client] = struct{}{}

	return &Subscription{hub: h, topic: topic, client: client}
}

func (h *Hub) remove(topic string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Broadcast sends payload to all subscribers of topic. Subscribers whose
// Send fails are closed and dropped.
func (h *Hub) Broadcast(topic string, payload []byte) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.clients[topic]))
	for c := range h.clients[topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			logrus.WithFields(logrus.Fields{"topic": topic, "error": err}).Warn("Dropping realtime subscriber")
			c.Close()
			h.remove(topic, c)
		}
	}
}

// Deliver encodes event and broadcasts it on its topic.
func (h *Hub) Deliver(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.Broadcast(event.Topic, payload)
	return nil
}

// Subscribers returns the number of subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
