package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/types"
)

const maxRequestIDBytes = 128

// RequestID keeps an acceptable caller supplied X-Request-Id and otherwise
// mints a uuid. The id is echoed on the response and attached to the log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(types.RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(types.RequestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validRequestID accepts up to maxRequestIDBytes of visible ASCII.
func validRequestID(id string) bool {
	return id != "" && len(id) <= maxRequestIDBytes &&
		!strings.ContainsFunc(id, func(c rune) bool { return c < '!' || c > '~' })
}
