// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": duration,
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a client attaching to a lobby event stream.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string, lobbyID uuid.UUID) {
	logger.WithFields(logrus.Fields{
		"remote":   remoteAddr,
		"lobby_id": lobbyID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a client detaching from a lobby event stream.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, lobbyID uuid.UUID, err error) {
	fields := logrus.Fields{
		"remote":   remoteAddr,
		"lobby_id": lobbyID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
