package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger installs the package logger used by the response helpers
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func respondWithError(w http.ResponseWriter, status int, userMsg string, err error) {
	if err != nil {
		logger.Error(userMsg, zap.Error(err))
	}
	respondWithJSON(w, status, map[string]string{"error": userMsg})
}
