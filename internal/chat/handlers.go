package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/carelink/care-coordination/pkg/auth"
	"github.com/carelink/care-coordination/pkg/httputil"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Handlers exposes conversations over HTTP and websocket
type Handlers struct {
	service  *Service
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHandlers creates the chat HTTP handlers
func NewHandlers(service *Service, hub *Hub, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement is delegated to the gateway in front
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Register configures chat routes on the router
func (h *Handlers) Register(api *mux.Router) {
	api.HandleFunc("/conversations", h.listConversationsHandler).Methods("GET")
	api.HandleFunc("/conversations/{partnerId}", h.getConversationHandler).Methods("GET")
	api.HandleFunc("/conversations/{id}/messages", h.historyHandler).Methods("GET")
	api.HandleFunc("/conversations/{id}/messages", h.postMessageHandler).Methods("POST")
	api.HandleFunc("/conversations/{id}/read", h.markReadHandler).Methods("PUT")
	api.HandleFunc("/conversations/{id}/ws", h.websocketHandler).Methods("GET")
}

func (h *Handlers) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	summaries, err := h.service.ConversationSummaries(claims.AccountID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	if summaries == nil {
		summaries = []*types.ConversationSummary{}
	}
	httputil.WriteJSON(w, http.StatusOK, summaries)
}

func (h *Handlers) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	partnerID := mux.Vars(r)["partnerId"]
	summary, err := h.service.Conversation(claims.AccountID, partnerID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handlers) historyHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	conversationID := mux.Vars(r)["id"]
	messages, err := h.service.History(claims.AccountID, conversationID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	if messages == nil {
		messages = []*types.Message{}
	}
	httputil.WriteJSON(w, http.StatusOK, messages)
}

func (h *Handlers) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	var req types.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, h.logger, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	conversationID := mux.Vars(r)["id"]
	m, err := h.service.PostMessage(claims.AccountID, claims.ActiveRole, conversationID, &req)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handlers) markReadHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	conversationID := mux.Vars(r)["id"]
	marked, err := h.service.MarkRead(claims.AccountID, conversationID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Conversation marked as read",
		"marked":  marked,
	})
}

// websocketHandler upgrades the connection and keeps the subscriber attached
// until it disconnects. Incoming frames are treated as post-message requests
// and run through the same gate as the REST endpoint; rejected messages come
// back as error frames instead of broadcasts.
func (h *Handlers) websocketHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	conversationID := mux.Vars(r)["id"]
	if !IsParticipant(conversationID, claims.AccountID) {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeNotParticipant, "not a participant of this conversation"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.hub.Subscribe(conversationID, conn)
	defer func() {
		h.hub.Unsubscribe(conversationID, conn)
		conn.Close()
	}()

	for {
		var req types.PostMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debugf("Websocket closed for conversation %s", conversationID)
			}
			return
		}

		if _, err := h.service.PostMessage(claims.AccountID, claims.ActiveRole, conversationID, &req); err != nil {
			// The message was rejected; tell only this subscriber
			h.hubSafeWriteError(conversationID, conn, err)
		}
	}
}

func (h *Handlers) hubSafeWriteError(conversationID string, conn *websocket.Conn, err error) {
	payload := map[string]interface{}{
		"error": err.Error(),
	}
	if ce, ok := err.(*types.CoordError); ok {
		payload["error"] = ce.Message
		payload["code"] = ce.Code
	}
	h.hub.WriteTo(conversationID, conn, payload)
}
