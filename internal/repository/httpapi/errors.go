package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// apiError is the server's error body:
//
//	{"error": {"status": 409, "title": "Conflict", "message": "...", "field": "username"}}
//
// field is optional; older servers put the offending field in title.
type apiError struct {
	Status  int    `json:"status"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

func readAPIError(resp *http.Response) apiError {
	var envelope struct {
		Error apiError `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Message == "" {
		// Proxies and crashed servers answer with HTML or nothing at all.
		return apiError{
			Status:  resp.StatusCode,
			Title:   http.StatusText(resp.StatusCode),
			Message: strings.TrimSpace(http.StatusText(resp.StatusCode)),
		}
	}
	if envelope.Error.Status == 0 {
		envelope.Error.Status = resp.StatusCode
	}
	return envelope.Error
}

// statusMap translates status codes to apperror kinds for one endpoint. The
// same status means different things on different endpoints: a 401 from
// /login is bad credentials, from /users/{name} it is an expired session.
type statusMap map[int]func(e apiError) error

// toError is the client-side mirror of a server's writeError: it walks the
// per-endpoint overrides first, then the defaults every endpoint shares.
func (m statusMap) toError(op string, resp *http.Response) error {
	e := readAPIError(resp)

	if fn, ok := m[resp.StatusCode]; ok {
		return fn(e)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return validationFrom(e)
	case resp.StatusCode >= http.StatusInternalServerError,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests:
		return apperror.Transient(op, fmt.Errorf("server returned %d %s", resp.StatusCode, e.Message))
	}
	return apperror.UnexpectedResponse(fmt.Sprintf("%s: server returned %d: %s", op, resp.StatusCode, e.Message))
}

func validationFrom(e apiError) error {
	field := e.Field
	if field == "" {
		field = e.Title
	}
	return apperror.ValidationFailed(field, e.Message)
}

// messageOr prefers the server's explanation when it sent one.
func messageOr(e apiError, fallback string) string {
	if e.Message == "" || e.Message == http.StatusText(e.Status) {
		return fallback
	}
	return e.Message
}
