package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go-auth-service/internal/logger"
	"go-auth-service/internal/tokendiag"
)

const requestIDHeader = "X-Request-ID"

// errorBody extracts the error block from an envelope response.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// Logging tags each request with an id, installs a request-scoped logger and
// writes one access line once the response is done.
func Logging(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			reqLogger := base.With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			started := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r.WithContext(logger.IntoContext(r.Context(), reqLogger)))

			attrs := []any{
				slog.Int("status", wrapped.status),
				slog.Int64("duration_ms", time.Since(started).Milliseconds()),
				slog.String("client_ip", ClientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			}

			if wrapped.status >= 400 && wrapped.body.Len() > 0 {
				var parsed errorBody
				if err := json.Unmarshal(wrapped.body.Bytes(), &parsed); err == nil && parsed.Error != nil {
					attrs = append(attrs, slog.String("error_code", parsed.Error.Code), slog.String("error_message", parsed.Error.Message))
					if parsed.Error.Details != "" {
						attrs = append(attrs, slog.String("error_details", parsed.Error.Details))
					}
				}
			}

			if wrapped.status == http.StatusUnauthorized {
				attrs = append(attrs, tokenAnnotations(r, started)...)
			}

			switch {
			case wrapped.status >= 500:
				reqLogger.Error("request", attrs...)
			case wrapped.status >= 400:
				reqLogger.Warn("request", attrs...)
			default:
				reqLogger.Info("request", attrs...)
			}
		})
	}
}

// tokenAnnotations explains a rejected bearer token without logging it.
func tokenAnnotations(r *http.Request, now time.Time) []any {
	token, ok := bearerToken(r)
	if !ok {
		return nil
	}

	diag, err := tokendiag.UnsafeDecode(token)
	if err != nil {
		return []any{slog.String("token_state", "malformed")}
	}

	attrs := []any{slog.String("token_subject", diag.Subject)}
	if diag.Expired(now) {
		attrs = append(attrs,
			slog.String("token_state", "expired"),
			slog.Time("token_expired_at", diag.ExpiresAt),
		)
	}
	return attrs
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.status >= 400 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
