package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"arkv/pkg/platform/httputil"
	"arkv/pkg/requestcontext"
)

// Checker is the part of Limiter the middleware needs.
type Checker interface {
	Check(ctx context.Context, client string, class EndpointClass) (*Result, bool, error)
}

// ExceededResponse is the body of a 429 answer.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware applies a Checker to HTTP requests keyed by client IP.
type Middleware struct {
	checker  Checker
	logger   *slog.Logger
	classify func(*http.Request) EndpointClass
}

// NewMiddleware creates the middleware. A nil checker disables limiting.
func NewMiddleware(checker Checker, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{checker: checker, logger: logger, classify: ClassifyByMethod}
}

// ClassifyByMethod treats POST as a write and everything else as a read.
// Ledger callbacks form their own class.
func ClassifyByMethod(r *http.Request) EndpointClass {
	if strings.HasPrefix(r.URL.Path, "/v1/anchors/") {
		return ClassCallback
	}
	if r.Method == http.MethodPost {
		return ClassWrite
	}
	return ClassRead
}

// Handler limits requests. Checker faults are logged and the request is let
// through.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil || m.checker == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		class := m.classify(r)

		result, degraded, err := m.checker.Check(ctx, ip, class)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit",
				"class", class,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}
		if result == nil {
			next.ServeHTTP(w, r)
			return
		}

		addHeaders(w, result, degraded)
		if !result.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"class", class,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, &ExceededResponse{
				Error:      "rate_limit_exceeded",
				Message:    "Too many requests from this IP address. Please try again later.",
				RetryAfter: result.RetryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addHeaders(w http.ResponseWriter, result *Result, degraded bool) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}
