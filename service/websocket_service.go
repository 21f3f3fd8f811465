package service

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WebSocketService broadcasts pipeline progress to every connected
// subscriber. One hub serves all runs; clients filter frames by run_id.
type WebSocketService struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]*sync.Mutex
	logger   *logrus.Logger
}

func NewWebSocketService(logger *logrus.Logger) *WebSocketService {
	return &WebSocketService{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
		conns:  make(map[*websocket.Conn]*sync.Mutex),
		logger: logger,
	}
}

// HandleProgress upgrades the request and keeps the connection subscribed
// until the client goes away. Subscribers only ever receive; the read
// loop exists for close detection and app-level pings.
func (s *WebSocketService) HandleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(512 * 1024) // 512KB max message size
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	writeMu := s.register(conn)
	defer s.unregister(conn)

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, writeMu, done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Debug("websocket read error")
			}
			return
		}
		var msg types.WebsocketMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Type == types.TypeWebsocketPing {
			if err := s.write(conn, writeMu, types.WebsocketMessage{Type: types.TypeWebsocketPong}); err != nil {
				return
			}
		}
	}
}

// Broadcast fans one progress event out to every subscriber. A
// connection that cannot take the write is dropped.
func (s *WebSocketService) Broadcast(event types.ProgressEvent) {
	msg := types.WebsocketMessage{Type: types.TypeWebsocketProgress, Payload: event}

	s.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for conn, writeMu := range s.conns {
		targets[conn] = writeMu
	}
	s.mu.Unlock()

	for conn, writeMu := range targets {
		if err := s.write(conn, writeMu, msg); err != nil {
			s.logger.WithError(err).Debug("dropping progress subscriber")
			s.unregister(conn)
		}
	}
}

func (s *WebSocketService) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close drops every subscriber. Used on shutdown.
func (s *WebSocketService) Close() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.conns = make(map[*websocket.Conn]*sync.Mutex)
	s.mu.Unlock()

	deadline := time.Now().Add(wsWriteWait)
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
	}
}

func (s *WebSocketService) register(conn *websocket.Conn) *sync.Mutex {
	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.conns[conn] = writeMu
	s.mu.Unlock()
	return writeMu
}

func (s *WebSocketService) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.conns[conn]
	delete(s.conns, conn)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// write serializes writes per connection; gorilla allows one concurrent
// writer, and the hub, the ping loop and the pong reply all write.
func (s *WebSocketService) write(conn *websocket.Conn, writeMu *sync.Mutex, msg types.WebsocketMessage) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

func (s *WebSocketService) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
