package httpapi

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"
)

// loggingTransport wraps an http.RoundTripper to log every request with its
// outcome, the same fields a server-side access log would carry.
//
// Each request gets an X-Request-ID (an xid: 20 URL-safe chars, sortable by
// time) so a client log line can be matched with the server's.
type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func newLoggingTransport(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, logger: logger}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	requestID := xid.New().String()

	// A RoundTripper must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("X-Request-ID", requestID)

	resp, err := t.next.RoundTrip(req)

	attrs := []any{
		slog.String("requestID", requestID),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("query", redactQuery(req.URL.Query())),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.logger.WarnContext(req.Context(), "request failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}

	t.logger.DebugContext(req.Context(), "request completed", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

// redactQuery drops the session token so it never reaches a log file.
func redactQuery(q url.Values) string {
	if q.Has("token") {
		q.Set("token", "REDACTED")
	}
	return q.Encode()
}
