package server

import (
	"encoding/json"
	"net/http"

	"polaris/internal/perr"
)

// writeJSON writes v as a JSON response body with status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The header is already sent; nothing more to do but note it.
		return
	}
}

// errorBody is the wire shape of every error response, per 7's "short
// machine-readable kind tag; stack traces are never exposed."
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Offset  *int   `json:"offset,omitempty"`
}

// writeError maps err to an HTTP status and a kind-tagged JSON body.
func writeError(w http.ResponseWriter, err error) {
	if bq, ok := err.(*perr.BadQuery); ok {
		offset := bq.Offset
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: string(perr.BadRequest), Message: bq.Message, Offset: &offset})
		return
	}

	kind := perr.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody{Kind: string(kind), Message: err.Error()})
}

func statusFor(kind perr.Kind) int {
	switch kind {
	case perr.BadRequest:
		return http.StatusBadRequest
	case perr.Unauthorized:
		return http.StatusUnauthorized
	case perr.Forbidden:
		return http.StatusForbidden
	case perr.NotFound:
		return http.StatusNotFound
	case perr.Conflict:
		return http.StatusConflict
	case perr.Unsupported:
		return http.StatusUnsupportedMediaType
	case perr.IO:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func perrUnauthorized(msg string) error { return perr.NewUnauthorized(msg) }
func perrInternal(msg string) error     { return perr.WrapInternal(msg, nil) }

// queryPagination reads offset/limit query parameters, defaulting
// offset to 0 and limit to 0 (meaning "no limit"), per the endpoint
// table's ?offset&limit convention.
func queryPagination(r *http.Request) (offset, limit int) {
	offset = queryInt(r, "offset", 0)
	limit = queryInt(r, "limit", 0)
	return offset, limit
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n := 0
	neg := false
	for i, c := range v {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}
