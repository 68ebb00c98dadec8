package appointment

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carelink/care-coordination/pkg/auth"
	"github.com/carelink/care-coordination/pkg/httputil"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Handlers exposes the appointment lifecycle over HTTP
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates the appointment HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// Register configures appointment routes on the router
func (h *Handlers) Register(api *mux.Router) {
	api.HandleFunc("/appointments", h.createHandler).Methods("POST")
	api.HandleFunc("/appointments", h.listHandler).Methods("GET")
	api.HandleFunc("/appointments/sweep-missed", h.sweepHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}", h.getHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}/approve", h.actionHandler(types.ActionApprove)).Methods("PUT")
	api.HandleFunc("/appointments/{id}/reject", h.actionHandler(types.ActionReject)).Methods("PUT")
	api.HandleFunc("/appointments/{id}/cancel", h.actionHandler(types.ActionCancel)).Methods("PUT")
	api.HandleFunc("/appointments/{id}/complete", h.actionHandler(types.ActionComplete)).Methods("PUT")
	api.HandleFunc("/appointments/{id}/missed", h.actionHandler(types.ActionMarkMissed)).Methods("PUT")
	api.HandleFunc("/appointments/{id}/reschedule", h.rescheduleHandler).Methods("POST")
}

func (h *Handlers) createHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	var req types.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, h.logger, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	apt, err := h.service.CreateAppointment(claims.AccountID, claims.ActiveRole, &req)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, apt)
}

func (h *Handlers) listHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	appointments, err := h.service.ListAppointments(claims.AccountID, claims.ActiveRole)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	if appointments == nil {
		appointments = []*types.Appointment{}
	}
	httputil.WriteJSON(w, http.StatusOK, appointments)
}

func (h *Handlers) getHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	apt, err := h.service.GetAppointment(claims.AccountID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, apt)
}

// actionHandler builds the handler for one lifecycle action. An optional
// JSON body may carry a reason for reject and cancel.
func (h *Handlers) actionHandler(action types.AppointmentAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
			return
		}

		req := types.TransitionRequest{Action: action}
		if r.Body != nil {
			// Body is optional; decode errors on an empty body are fine
			_ = json.NewDecoder(r.Body).Decode(&req)
			req.Action = action
		}

		apt, err := h.service.Transition(claims.AccountID, mux.Vars(r)["id"], &req)
		if err != nil {
			httputil.WriteError(w, h.logger, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, apt)
	}
}

func (h *Handlers) rescheduleHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	var req types.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, h.logger, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	result, err := h.service.Reschedule(claims.AccountID, mux.Vars(r)["id"], &req)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

// sweepHandler triggers the missed-appointment sweep on demand. Restricted
// to provider and clinical-admin roles; the background sweeper runs the same
// path on a timer.
func (h *Handlers) sweepHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}
	if claims.ActiveRole != types.RoleProvider && claims.ActiveRole != types.RoleClinicalAdmin {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "sweep requires provider or clinical admin role"))
		return
	}

	marked, err := h.service.SweepMissed(time.Now().UTC())
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Missed-appointment sweep finished",
		"marked":  marked,
	})
}
