package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ketutoka/printlabel/internal/label"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Previews carry no credentials; origins are not restricted.
	CheckOrigin: func(*http.Request) bool { return true },
}

var wsRequestSeq atomic.Uint64

// WebSocketRequest is a client message on /ws/preview.
type WebSocketRequest struct {
	Type      string          `json:"type"` // "preview" or "ping"
	RequestID string          `json:"request_id,omitempty"`
	Scale     int             `json:"scale,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// WebSocketResponse is a server message on /ws/preview.
type WebSocketResponse struct {
	Type      string `json:"type"` // "preview", "pong" or "error"
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Profile   string `json:"profile,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	PNG       string `json:"png,omitempty"` // base64
	Error     string `json:"error,omitempty"`
}

// WebSocketConnWriter is the part of *websocket.Conn used to reply.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// previewWebSocketHandler streams live previews: every preview message is
// answered with the rendered PNG.
func (s *Server) previewWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("websocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var msg WebSocketRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendWebSocketError(conn, "", fmt.Sprintf("invalid message: %v", err))
		return
	}
	if msg.RequestID == "" {
		msg.RequestID = strconv.FormatUint(wsRequestSeq.Add(1), 10)
	}

	switch msg.Type {
	case "ping":
		s.sendWebSocketResponse(conn, WebSocketResponse{Type: "pong", RequestID: msg.RequestID, Success: true})
	case "preview":
		s.processWebSocketPreview(ctx, conn, msg)
	default:
		s.sendWebSocketError(conn, msg.RequestID, "unsupported message type: "+msg.Type)
	}
}

func (s *Server) processWebSocketPreview(ctx context.Context, conn WebSocketConnWriter, msg WebSocketRequest) {
	var req label.Request
	if len(msg.Data) == 0 {
		s.sendWebSocketError(conn, msg.RequestID, "missing data")
		return
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.sendWebSocketError(conn, msg.RequestID, fmt.Sprintf("invalid data: %v", err))
		return
	}
	scale := msg.Scale
	if scale < 1 || scale > maxPreviewScale {
		scale = 1
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	png, rendering, err := s.preview(ctx, req, scale)
	if err != nil {
		s.sendWebSocketError(conn, msg.RequestID, err.Error())
		return
	}

	b := rendering.Image.Bounds()
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "preview",
		RequestID: msg.RequestID,
		Success:   true,
		Profile:   rendering.Profile.Name,
		Width:     b.Dx(),
		Height:    b.Dy(),
		PNG:       base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal websocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		RequestID: requestID,
		Success:   false,
		Error:     message,
	})
}
