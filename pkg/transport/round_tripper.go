package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/samandr77/microservices/ticketflow/pkg/logger"
)

// TokenSource yields the bearer token for outgoing requests. An empty token means anonymous.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type RoundTripper struct {
	Transport http.RoundTripper
	Tokens    TokenSource
}

func NewRoundTripper(transport http.RoundTripper, tokens TokenSource) *RoundTripper {
	return &RoundTripper{Transport: transport, Tokens: tokens}
}

func (t *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	r = r.Clone(ctx)

	reqID := logger.RequestIDFromCtx(ctx)
	if reqID == "" {
		reqID = uuid.Must(uuid.NewV4()).String()
	}

	r.Header.Set("X-Request-Id", reqID)

	if t.Tokens != nil {
		if token := t.Tokens.Token(); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}

	slog.InfoContext(ctx, "outgoing request", "request", fmt.Sprintf("%s %s", r.Method, r.URL.Redacted()))

	resp, err := t.Transport.RoundTrip(r)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}

	slog.InfoContext(ctx, "incoming response",
		"response", fmt.Sprintf("%s %s", r.Method, r.URL.Redacted()),
		"status", resp.StatusCode,
	)

	return resp, nil
}
