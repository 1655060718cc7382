package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	allowedMethods = "GET, POST, OPTIONS"
	allowedHeaders = "Content-Type, Accept, Authorization, Mcp-Session-Id, Mcp-Protocol-Version"
)

// cors allows every origin. Preflight requests are answered here and never reach a route.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Expose-Headers", sessionHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one entry per request once it completes.
func requestLogger(logger log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.WithFields(log.Fields{
					"requestId": middleware.GetReqID(r.Context()),
					"method":    r.Method,
					"path":      r.URL.Path,
					"status":    ww.Status(),
					"bytes":     ww.BytesWritten(),
					"remote":    r.RemoteAddr,
					"duration":  time.Since(start),
				}).Info("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
