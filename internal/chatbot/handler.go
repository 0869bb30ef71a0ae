package chatbot

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/smiledent/clinic-site/internal/session"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// maxMessageLen caps a single visitor message.
const maxMessageLen = 1000

// Handler serves the chat endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// InboundMessage is what the widget sends over the websocket.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// OutboundMessage is what the widget receives.
type OutboundMessage struct {
	Type      string    `json:"type"` // "message", "history", "session", "pong", "error"
	Text      string    `json:"text,omitempty"`
	Topic     Topic     `json:"topic,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the chat under /api/chat.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Ask)
	r.Get("/history", h.History)
	r.Get("/ws", h.HandleWebSocket)
	return r
}

// Ask handles POST /api/chat {"text"}
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	sid, ok := session.IDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing session", http.StatusBadRequest)
		return
	}
	var req InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	text := clip(req.Text)
	if text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}
	reply := h.svc.Ask(r.Context(), sid, text)
	writeJSON(w, http.StatusOK, OutboundMessage{Type: "message", Text: reply.Text, Topic: reply.Topic, Actions: reply.Actions, SessionID: sid})
}

// History handles GET /api/chat/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sid, ok := session.IDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing session", http.StatusBadRequest)
		return
	}
	t, err := h.svc.History(r.Context(), sid)
	if err != nil {
		h.logger.Error("chatbot: history failed", "error", err)
		jsonError(w, "Чат временно недоступен", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, OutboundMessage{Type: "history", Messages: t.Messages, SessionID: sid})
}

// HandleWebSocket upgrades to a websocket and answers messages as they arrive.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sid, ok := session.IDFromContext(ctx)
	if q := r.URL.Query().Get("session"); session.Valid(q) {
		sid, ok = q, true
	}
	if !ok {
		sid = session.NewID()
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sid})
	if t, err := h.svc.History(ctx, sid); err == nil {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: t.Messages})
	}
	h.logger.Info("chatbot: connection opened", "session_id", sid)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("chatbot: connection closed", "session_id", sid, "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		text := clip(msg.Text)
		if msg.Type != "message" || text == "" {
			continue
		}
		reply := h.svc.Ask(ctx, sid, text)
		if err := websocket.JSON.Send(conn, OutboundMessage{Type: "message", Text: reply.Text, Topic: reply.Topic, Actions: reply.Actions}); err != nil {
			h.logger.Debug("chatbot: send failed", "session_id", sid, "error", err)
			return
		}
	}
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxMessageLen {
		s = string(r[:maxMessageLen])
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
