package identity

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carelink/care-coordination/pkg/auth"
	"github.com/carelink/care-coordination/pkg/httputil"
	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Handlers exposes the account and provider directory over HTTP
type Handlers struct {
	directory interfaces.DirectoryRepository
	resolver  interfaces.IdentityResolver
	logger    *logger.Logger
}

// NewHandlers creates the identity HTTP handlers
func NewHandlers(directory interfaces.DirectoryRepository, resolver interfaces.IdentityResolver, log *logger.Logger) *Handlers {
	return &Handlers{
		directory: directory,
		resolver:  resolver,
		logger:    log,
	}
}

// Register configures identity routes on the router
func (h *Handlers) Register(api *mux.Router) {
	api.HandleFunc("/accounts/me", h.getMeHandler).Methods("GET")
	api.HandleFunc("/accounts/me/role", h.switchRoleHandler).Methods("PUT")
	api.HandleFunc("/providers/{ref}", h.getProviderHandler).Methods("GET")
}

func (h *Handlers) getMeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	acc, err := h.directory.GetAccount(claims.AccountID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, acc)
}

type switchRoleRequest struct {
	Role types.Role `json:"role"`
}

// switchRoleHandler flips the caller's active role. The role must be in the
// account's role set; notifications written after the switch address the new
// role.
func (h *Handlers) switchRoleHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, h.logger, types.NewForbiddenError(types.ErrCodeForbidden, "missing credentials"))
		return
	}

	var req switchRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, h.logger, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if !req.Role.Valid() {
		httputil.WriteError(w, h.logger, types.NewValidationError(types.ErrCodeInvalidRole, "unknown role", nil))
		return
	}

	if err := h.directory.UpdateActiveRole(claims.AccountID, req.Role); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"account_id":  claims.AccountID,
		"active_role": string(req.Role),
	})
}

// getProviderHandler resolves a provider by profile id or account id
func (h *Handlers) getProviderHandler(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]

	profile, err := h.resolver.ResolveProvider(ref)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}
