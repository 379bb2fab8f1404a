package middleware

import (
	"net/http"
	"time"

	chimid "github.com/go-chi/chi/v5/middleware"
)

func Recover(next http.Handler) http.Handler {
	return chimid.Recoverer(next)
}

// Timeout 為每個請求加上 ctx 期限；handler 把 ctx 往下傳給 DevicePool / 後端，
// 逾時後由 httperr 映射成 504。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return chimid.Timeout(d)
}
