package testutil

import (
	"io"
	"log/slog"
	"net/http"

	"sitepulse/pkg/requestcontext"
)

// WithCountry sets the edge country on the request, as the geo middleware would.
func WithCountry(req *http.Request, country string) *http.Request {
	return req.WithContext(requestcontext.WithCountry(req.Context(), country))
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
