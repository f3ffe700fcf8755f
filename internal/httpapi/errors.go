package httpapi

import (
	"encoding/json"
	"net/http"

	"mlxhub/internal/hub"
	"mlxhub/pkg/types"
)

// statusForError maps the hub error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case hub.IsNotFound(err):
		return http.StatusNotFound
	case hub.IsAlreadyRunning(err), hub.IsNotRunning(err),
		hub.IsPortConflict(err), hub.IsGroupCapacity(err):
		return http.StatusConflict
	case hub.IsNotJIT(err), hub.IsConfigInvalid(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeHubError serializes a hub error with its stable kind identifier.
func writeHubError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: err.Error(),
		Kind:  hub.Kind(err),
		Code:  status,
	})
}
