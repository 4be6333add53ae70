package web

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs every request and turns handler panics into 500s.
func loggingMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panicked", zap.Any("panic", p), zap.String("path", r.URL.Path), zap.Stack("stack"))
				writeError(rec, http.StatusInternalServerError, "internal error")
			}
			log.Debug("request",
				zap.String(logger.FieldMethod, r.Method),
				zap.String("path", r.URL.Path),
				zap.Int(logger.FieldStatusCode, rec.status),
				zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}
