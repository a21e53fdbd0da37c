package diagnostics

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
)

// writeJSON writes v as JSON with the given status. Encoding errors are ignored.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes {"code","message",...}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rcerrors.WriteHTTPError(w, err, middleware.GetReqID(r.Context()))
}

// decodeJSON decodes the request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
