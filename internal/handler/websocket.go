package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studio-session/internal/auth"
	"studio-session/internal/hub"
	"studio-session/internal/log"
	"studio-session/internal/session"
)

// WebSocketHandler keeps one socket per tab. Tabs report activity and extend
// requests over it and receive warning and expiry frames for their user.
type WebSocketHandler struct {
	Hub         *hub.Hub
	Sessions    *session.Manager
	TokenConfig auth.TokenConfig
}

type clientMessage struct {
	Type string `json:"type"`
	Page string `json:"page,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	claims, err := auth.VerifyToken(tokenString, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	userID := claims.UserID

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := hub.NewConnection(userID, &wsWriter{conn: ws})
	h.Hub.Register(conn)
	log.Debug().Str("user", userID).Str("conn", conn.ID).Msg("ws: connected")
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
		log.Debug().Str("user", userID).Str("conn", conn.ID).Msg("ws: disconnected")
	}()

	// Late joiners learn the current state immediately.
	if status, err := h.Sessions.Status(userID); err == nil {
		h.send(conn, hub.Frame{Type: "session", Event: "state", Body: status})
	} else {
		h.send(conn, hub.Frame{Type: "session", Event: "session-expired", Body: gin.H{"reason": "no-session"}})
	}

	ws.SetReadLimit(64 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			h.send(conn, hub.Frame{Type: "pong"})
		case "activity":
			if err := h.Sessions.Touch(userID, msg.Page); err != nil {
				h.send(conn, hub.Frame{Type: "session", Event: "session-expired", Body: gin.H{"reason": "no-session"}})
			}
		case "extend":
			if err := h.Sessions.Extend(userID); err != nil {
				h.send(conn, hub.Frame{Type: "session", Event: "session-expired", Body: gin.H{"reason": "no-session"}})
			}
		}
	}
}

func (h *WebSocketHandler) send(conn *hub.Connection, f hub.Frame) {
	out, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.Hub.Send(conn, out)
}
