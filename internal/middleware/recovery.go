package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"go-auth-service/internal/logger"
	"go-auth-service/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			logger.FromContext(r.Context()).ErrorContext(r.Context(), "panic recovered",
				slog.String("error", fmt.Sprintf("%v", recovered)),
				slog.String("stack", string(debug.Stack())),
			)
			writeError(w, apierror.Internal("Unexpected server error"))
		}()

		next.ServeHTTP(w, r)
	})
}
