package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

const (
	ChannelVotes      = "votes"
	EventVoteReceived = "vote.received"

	sendBufferSize = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

func ServerChannel(serverID uuid.UUID) string {
	return "servers." + serverID.String()
}

type SubscriberGauge interface {
	SetRealtimeSubscribers(n int)
}

type message struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

type votePayload struct {
	ID                uuid.UUID  `json:"id"`
	MinecraftUsername string     `json:"minecraft_username"`
	MinecraftUUID     *uuid.UUID `json:"minecraft_uuid,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type serverPayload struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	MonthlyVotes int64     `json:"monthly_votes"`
	TotalVotes   int64     `json:"total_votes"`
}

type voteReceivedPayload struct {
	Vote   votePayload   `json:"vote"`
	Server serverPayload `json:"server"`
}

type subscriber struct {
	channel string
	send    chan []byte
}

// Hub fans committed votes out to websocket subscribers. A subscriber listens
// either to every vote or to the votes of a single server.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	upgrader    websocket.Upgrader
	gauge       SubscriberGauge
	logger      *slog.Logger
}

func NewHub(allowedOrigins []string, gauge SubscriberGauge, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		subscribers: make(map[*subscriber]struct{}),
		gauge:       gauge,
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *Hub) PublishVoteReceived(ctx context.Context, event domain.VoteReceivedEvent) error {
	data := voteReceivedPayload{
		Vote: votePayload{
			ID:                event.VoteID,
			MinecraftUsername: event.MinecraftUsername,
			MinecraftUUID:     event.MinecraftUUID,
			CreatedAt:         event.CreatedAt,
		},
		Server: serverPayload{
			ID:           event.ServerID,
			Name:         event.ServerName,
			Slug:         event.ServerSlug,
			MonthlyVotes: event.MonthlyVotes,
			TotalVotes:   event.TotalVotes,
		},
	}

	frames := make(map[string][]byte, 2)
	for _, channel := range []string{ChannelVotes, ServerChannel(event.ServerID)} {
		frame, err := json.Marshal(message{Event: EventVoteReceived, Channel: channel, Data: data})
		if err != nil {
			return fmt.Errorf("failed to encode vote event: %w", err)
		}
		frames[channel] = frame
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		frame, ok := frames[sub.channel]
		if !ok {
			continue
		}
		select {
		case sub.send <- frame:
		default:
			h.logger.Warn("dropping vote event for slow subscriber", "channel", sub.channel)
		}
	}
	return nil
}

// ServeWS upgrades the request and streams events until the client goes
// away. ?server={id} narrows the subscription to one server.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	channel := ChannelVotes
	if raw := r.URL.Query().Get("server"); raw != "" {
		serverID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid server id", http.StatusBadRequest)
			return
		}
		channel = ServerChannel(serverID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{channel: channel, send: make(chan []byte, sendBufferSize)}
	h.add(sub)

	go h.writePump(conn, sub)
	h.readPump(conn)

	h.remove(sub)
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	h.setGauge(n)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
	n := len(h.subscribers)
	h.mu.Unlock()
	h.setGauge(n)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.SetRealtimeSubscribers(n)
	}
}

// readPump discards client frames; it only exists to notice disconnects and
// answer pings.
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
