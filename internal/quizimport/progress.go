package quizimport

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/quiz-import/pkg/http/ws"
)

// HubReporter publishes progress to WebSocket subscribers of the import id.
type HubReporter struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

var _ ProgressReporter = (*HubReporter)(nil)

func NewHubReporter(hub *ws.Hub, logger zerolog.Logger) *HubReporter {
	return &HubReporter{hub: hub, logger: logger}
}

func (r *HubReporter) Report(p Progress) {
	if r.hub.Subscribers(p.ImportID) == 0 {
		return
	}
	msg, err := ws.NewMessage(ws.TypeImportProgress, p)
	if err != nil {
		r.logger.Warn().Err(err).Msg("encode progress")
		return
	}
	_ = r.hub.Broadcast(p.ImportID, msg)
}

// ProgressHandler streams import progress over WebSocket.
// Route: GET /ws/imports/{importID}
type ProgressHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewProgressHandler(hub *ws.Hub, upgrader websocket.Upgrader, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "import_progress_ws").Logger(),
	}
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	importID := r.PathValue("importID")
	if importID == "" {
		http.Error(w, "import id required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	log := h.logger.With().Str("import_id", importID).Logger()
	c := ws.NewConnection(conn, log)
	go c.WritePump()

	h.hub.Subscribe(importID, c)
	if msg, err := ws.NewMessage(ws.TypeSubscribed, ws.SubscribedPayload{Topic: importID}); err == nil {
		_ = c.Send(msg)
	}

	c.ReadPump(func(msg ws.Message) error {
		switch msg.Type {
		case ws.TypePing:
			return c.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
		default:
			reply, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "unknown_message_type", Message: "only ping is accepted"})
			if err != nil {
				return err
			}
			return c.Send(reply)
		}
	})

	h.hub.Unsubscribe(importID, c)
	c.Close()
}
