package notification

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carelink/care-coordination/pkg/auth"
	"github.com/carelink/care-coordination/pkg/httputil"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Handlers exposes notifications over HTTP. The caller's account and active
// role come from the bearer token; notifications outside that pair are never
// visible.
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates the notification HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// Register configures notification routes on the router
func (h *Handlers) Register(api *mux.Router) {
	api.HandleFunc("/notifications", h.listHandler).Methods("GET")
	api.HandleFunc("/notifications", h.clearHandler).Methods("DELETE")
	api.HandleFunc("/notifications/{id}/read", h.markReadHandler).Methods("PUT")
	api.HandleFunc("/notifications/{id}", h.deleteHandler).Methods("DELETE")
}

func (h *Handlers) listHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	notifications, err := h.service.ListFor(claims.AccountID, claims.ActiveRole)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	if notifications == nil {
		notifications = []*types.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, notifications)
}

func (h *Handlers) markReadHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.service.MarkRead(id, claims.AccountID, claims.ActiveRole); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *Handlers) deleteHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.service.Delete(id, claims.AccountID, claims.ActiveRole); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}

func (h *Handlers) clearHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	cleared, err := h.service.Clear(claims.AccountID, claims.ActiveRole)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Notifications cleared",
		"cleared": cleared,
	})
}
