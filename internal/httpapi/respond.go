package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func respondFieldErrors(w http.ResponseWriter, code, message string, fields map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]errorBody{
		"error": {Code: code, Message: message, Fields: fields},
	})
}
