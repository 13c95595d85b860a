package http

import (
	"log"
	"net/http"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler streams live question edits to a client holding an active attempt.
// The feed is display-only: scoring always runs against the stored exam
// snapshot, so a dropped connection never affects correctness.
type WSHandler struct {
	service  *app.AttemptService
	updates  *app.QuestionBroadcaster
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, updates *app.QuestionBroadcaster) *WSHandler {
	return &WSHandler{
		service: service,
		updates: updates,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type subscribedPayload struct {
	AttemptID string `json:"attempt_id"`
}

// ServeUpdates upgrades the request and forwards question edits for the
// attempt's exam until the client disconnects.
func (h *WSHandler) ServeUpdates(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.GetAttempt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if attempt.Terminal() {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: domain.ErrAttemptNotActive.Error()}})
		return
	}

	updates, cancel := h.updates.Subscribe(attempt.ExamID)
	defer cancel()

	if err := conn.WriteJSON(outboundMessage[subscribedPayload]{Type: "subscribed", Payload: subscribedPayload{AttemptID: attempt.ID}}); err != nil {
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for update := range updates {
			if err := conn.WriteJSON(outboundMessage[domain.QuestionUpdate]{Type: "questionUpdate", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Read until the client goes away; the feed is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}
