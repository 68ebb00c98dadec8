package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// WriteJSON writes data as a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		// Headers are already out; an encode failure here is unrecoverable
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError maps a coordination error to an HTTP status and writes the
// structured error body
func WriteError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := StatusOf(err)

	body := map[string]interface{}{
		"error":  err.Error(),
		"status": status,
	}
	if ce, ok := err.(*types.CoordError); ok {
		body["error"] = ce.Message
		body["code"] = ce.Code
		if len(ce.Details) > 0 {
			body["details"] = ce.Details
		}
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Debug("Request rejected")
	}

	WriteJSON(w, status, body)
}

// StatusOf maps an error to its HTTP status code
func StatusOf(err error) int {
	switch types.TypeOf(err) {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeForbidden:
		return http.StatusForbidden
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
