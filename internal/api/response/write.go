package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Accepted writes a 202 for work that has been applied and broadcast
func Accepted(w http.ResponseWriter) {
	JSON(w, http.StatusAccepted, Status{Status: "accepted"})
}
