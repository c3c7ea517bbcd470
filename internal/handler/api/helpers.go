// Package api exposes the billing REST surface. Handlers stay thin:
// decode, call the service, encode. All business rules live in the
// service layer and all error shaping goes through handler.ErrorResponse.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/strandhq/billing/internal/domain"
)

// respondJSON writes the value as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Errorf(domain.EINVALID, "", "Invalid request body: %s", err.Error())
	}
	return nil
}

// pathUUID parses the named path value as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Errorf(domain.EINVALID, "", "Invalid %s: %q", name, raw)
	}
	return id, nil
}
