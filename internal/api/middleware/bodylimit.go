package middleware

import (
	"net/http"
)

// MaxBodySize ограничивает размер тела запроса.
// Запрос с Content-Length больше limit отклоняется с 413 до вызова обработчика;
// тело без длины оборачивается http.MaxBytesReader, и обработчик получает
// *http.MaxBytesError при превышении.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
