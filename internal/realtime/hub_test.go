package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func (f *fakeSubscriber) Send(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestHub_BroadcastOnlyReachesTopic(t *testing.T) {
	hub := NewHub()
	a := &fakeSubscriber{}
	b := &fakeSubscriber{}

	hub.Subscribe(ProjectTopic(1), a)
	hub.Subscribe(ProjectTopic(2), b)

	hub.Broadcast(ProjectTopic(1), []byte("x"))

	assert.Equal(t, 1, a.received())
	assert.Equal(t, 0, b.received())
}

func TestHub_SubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	a := &fakeSubscriber{}
	b := &fakeSubscriber{}

	subA := hub.Subscribe("t", a)
	hub.Subscribe("t", b)
	require.Equal(t, 2, hub.Subscribers("t"))

	subA.Close()
	subA.Close()
	assert.Equal(t, 1, hub.Subscribers("t"))

	hub.Broadcast("t", []byte("x"))
	assert.Equal(t, 0, a.received())
	assert.Equal(t, 1, b.received())
}

func TestHub_DropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	bad := &fakeSubscriber{fail: true}
	hub.Subscribe("t", bad)

	hub.Broadcast("t", []byte("x"))

	assert.True(t, bad.closed)
	assert.Equal(t, 0, hub.Subscribers("t"))
}

func TestMemoryBroker_PublishEncodesEvent(t *testing.T) {
	hub := NewHub()
	sub := &fakeSubscriber{}
	hub.Subscribe(NotificationsTopic(9), sub)

	broker := NewMemoryBroker(hub)
	err := broker.Publish(context.Background(), Event{
		Topic: NotificationsTopic(9),
		Table: "notifications",
		Event: ActionInsert,
		ID:    5,
	})
	require.NoError(t, err)
	require.Equal(t, 1, sub.received())

	var got Event
	require.NoError(t, json.Unmarshal(sub.payloads[0], &got))
	assert.Equal(t, "notifications:9", got.Topic)
	assert.Equal(t, ActionInsert, got.Event)
	assert.Equal(t, uint64(5), got.ID)
}

func TestClient_DeliversAndReleasesOnDisconnect(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	topic := ConversationTopic(3)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, 1)
		client.Attach(hub.Subscribe(topic, client))
		client.Run()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Subscribers(topic) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Deliver(Event{Topic: topic, Table: "messages", Event: ActionInsert, ID: 11}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, uint64(11), got.ID)
	assert.Equal(t, "messages", got.Table)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(topic) == 0 }, 2*time.Second, 10*time.Millisecond)
}
