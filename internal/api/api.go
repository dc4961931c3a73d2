// Package api exposes the mail-merge service over HTTP: send endpoints,
// recipient and template CRUD, uploads, and static file serving.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// idParam parses the {id} URL parameter as a positive integer.
func idParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// validAddress is the syntactic presence check applied to addresses at the
// request boundary. Deliverability is the relay's problem.
func validAddress(addr string) bool {
	return strings.Contains(addr, "@")
}
