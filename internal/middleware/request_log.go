package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hospitalbooking/internal/logger"
)

// RequestLog логирует method, path и статус; медленные и 5xx ответы — на уровне info.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		if ww.Status() >= http.StatusInternalServerError || elapsed >= 100*time.Millisecond {
			logger.Infof("http %s %s status=%d duration_ms=%d", r.Method, r.URL.Path, ww.Status(), elapsed.Milliseconds())
			return
		}
		logger.Debugf("http %s %s status=%d duration_ms=%d", r.Method, r.URL.Path, ww.Status(), elapsed.Milliseconds())
	})
}
