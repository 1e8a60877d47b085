package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/orchestrator"
)

const (
	uploadWait = 60 * time.Second
	writeWait  = 10 * time.Second
)

// newUpgrader accepts browser origins from allowed; non-browser clients
// send no Origin header and are always accepted
func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Stream message types
const (
	messageEvent  = "event"
	messageResult = "result"
	messageError  = "error"
)

// streamMessage is one JSON frame sent to a stream client
type streamMessage struct {
	Type    string                 `json:"type"`
	Event   *orchestrator.Event    `json:"event,omitempty"`
	Result  *orchestrator.Analysis `json:"result,omitempty"`
	Status  int                    `json:"status,omitempty"`
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
}

// streamSession serialises writes from concurrent pipeline observers
type streamSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *streamSession) send(msg streamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// handleAnalyzeStream runs the full analysis over a websocket. The client
// sends the MP3 as one binary message and receives stage events followed
// by a result or error frame.
func (h *Handler) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	limit := h.maxUpload
	if limit <= 0 {
		limit = audio.DefaultMaxBytes
	}
	conn.SetReadLimit(limit)
	conn.SetReadDeadline(time.Now().Add(uploadWait))

	session := &streamSession{conn: conn}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		if err == websocket.ErrReadLimit {
			session.send(streamMessage{
				Type:    messageError,
				Status:  http.StatusRequestEntityTooLarge,
				Message: audio.ErrPayloadTooLarge.Error(),
			})
			return
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			logger.Warn().Err(err).Msg("WebSocket read error")
		}
		return
	}
	if msgType != websocket.BinaryMessage {
		session.send(streamMessage{
			Type:    messageError,
			Status:  http.StatusBadRequest,
			Message: "expected MP3 audio as a binary message",
		})
		return
	}

	logger.Info().Int("bytes", len(data)).Msg("Stream analysis started")

	// The goroutine below is the only reader from here on. A read error means
	// the client went away, so the analysis is abandoned.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn.SetReadDeadline(time.Time{})
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	ctx = orchestrator.WithObserver(ctx, func(event orchestrator.Event) {
		if err := session.send(streamMessage{Type: messageEvent, Event: &event, Success: true}); err != nil {
			logger.Debug().Err(err).Str("stage", string(event.Stage)).Msg("Failed to send stream event")
		}
	})

	result, err := h.service.Analyze(ctx, data)
	if err != nil && ctx.Err() != nil && r.Context().Err() == nil {
		logger.Info().Err(err).Msg("Stream client disconnected; analysis cancelled")
		return
	}
	if err != nil {
		status := statusFor(err)
		logger.Error().Err(err).Int("status", status).Msg("Stream analysis failed")
		session.send(streamMessage{Type: messageError, Status: status, Message: err.Error()})
		return
	}

	session.send(streamMessage{
		Type:    messageResult,
		Result:  result,
		Success: true,
		Message: "Full analysis completed successfully",
	})

	session.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	session.mu.Unlock()
}
