package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/metrics"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/services"
)

type RealtimeHandler struct {
	hub           *realtime.Hub
	subscriptions *services.SubscriptionService
	upgrader      websocket.Upgrader
}

// NewRealtimeHandler serves websocket subscriptions. allowedOrigin is the
// public base URL; an empty value accepts any origin.
func NewRealtimeHandler(hub *realtime.Hub, subscriptions *services.SubscriptionService, allowedOrigin string) *RealtimeHandler {
	return &RealtimeHandler{
		hub:           hub,
		subscriptions: subscriptions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	if allowed == "" {
		return func(*http.Request) bool { return true }
	}
	base, err := url.Parse(allowed)
	if err != nil {
		return func(*http.Request) bool { return false }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host || (u.Scheme == base.Scheme && u.Host == base.Host)
	}
}

// Connect upgrades to a websocket subscribed to the caller's notifications
// plus every ?conversation_id and ?project_id the caller may follow. Each
// change is pushed as {topic, table, event, id}; clients refetch.
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	conversationIDs, err := queryIDs(c, "conversation_id")
	if err != nil {
		respondError(c, err)
		return
	}
	projectIDs, err := queryIDs(c, "project_id")
	if err != nil {
		respondError(c, err)
		return
	}

	topics, err := h.subscriptions.Topics(c.Request.Context(), userID, conversationIDs, projectIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response
		logrus.WithError(err).WithField("user_id", userID).Debug("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(conn, userID)
	for _, topic := range topics {
		client.Attach(h.hub.Subscribe(topic, client))
	}

	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	logrus.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   userID,
		"topics":    topics,
	}).Debug("realtime client connected")

	client.Run()
}
