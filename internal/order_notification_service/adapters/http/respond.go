package http

import (
	"encoding/json"
	"net/http"
)

// MaxRequestBodySize caps webhook and admin request bodies.
const MaxRequestBodySize = 1 << 20 // 1 MB

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}
