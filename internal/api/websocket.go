package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacylights-bulbs/internal/services/pubsub"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingInterval   = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
	wsBufferSize     = 64
)

// wsMessage is one event pushed to websocket clients.
type wsMessage struct {
	Type    pubsub.Topic `json:"type"`
	Payload any          `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checking is handled by CORS middleware
	},
}

// handleWebSocket streams run updates, optionally filtered by ?deviceId=.
// Active runs are sent first so a client starts from the current state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.pubsub == nil {
		writeError(w, http.StatusServiceUnavailable, "live updates are disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	deviceID := r.URL.Query().Get("deviceId")
	runs := s.pubsub.Subscribe(pubsub.TopicPatternRunUpdated, deviceID, wsBufferSize)
	schedules := s.pubsub.Subscribe(pubsub.TopicSchedulesUpdated, "", wsBufferSize)

	closed := make(chan struct{})
	go s.readPump(conn, closed)
	go func() {
		defer func() {
			s.pubsub.Unsubscribe(runs)
			s.pubsub.Unsubscribe(schedules)
			_ = conn.Close()
		}()
		s.writePump(conn, deviceID, runs, schedules, closed)
	}()
}

// readPump discards client messages and signals when the connection closes.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, deviceID string, runs, schedules *pubsub.Subscriber, closed <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for _, status := range s.playback.ActiveRuns() {
		if deviceID != "" && status.DeviceID != deviceID {
			continue
		}
		if err := writeMessage(conn, pubsub.TopicPatternRunUpdated, status); err != nil {
			return
		}
	}

	for {
		select {
		case msg, ok := <-runs.Channel:
			if !ok {
				return
			}
			if err := writeMessage(conn, pubsub.TopicPatternRunUpdated, msg); err != nil {
				return
			}
		case _, ok := <-schedules.Channel:
			if !ok {
				return
			}
			if err := writeMessage(conn, pubsub.TopicSchedulesUpdated, nil); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, topic pubsub.Topic, payload any) error {
	data, err := json.Marshal(wsMessage{Type: topic, Payload: payload})
	if err != nil {
		log.Printf("Failed to encode websocket message: %v", err)
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
