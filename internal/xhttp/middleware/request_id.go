package middleware

import (
	"net/http"

	"github.com/dittrime/stride/internal/xcontext"
	"github.com/dittrime/stride/internal/xhttp"
	"github.com/google/uuid"
)

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		ctx := xcontext.SetRequestID(r.Context(), id)
		xhttp.SetHeaderRequestID(w, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
