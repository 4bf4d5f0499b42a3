package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JonMunkholm/csvvault/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no file", &core.Rejection{Reason: core.NoFileProvided}, http.StatusBadRequest},
		{"wrong type", &core.Rejection{Reason: core.InvalidFileType}, http.StatusUnsupportedMediaType},
		{"empty", &core.Rejection{Reason: core.EmptyFile}, http.StatusUnprocessableEntity},
		{"malformed", &core.Rejection{Reason: core.MalformedContent, Detail: "bare quote"}, http.StatusUnprocessableEntity},
		{"columns", &core.Rejection{Reason: core.InconsistentColumns}, http.StatusUnprocessableEntity},
		{"duplicate", &core.Rejection{Reason: core.DuplicateFile}, http.StatusConflict},
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("read: %w", core.ErrNotFound), http.StatusNotFound},
		{"forbidden", core.ErrForbidden, http.StatusForbidden},
		{"unauthenticated", fmt.Errorf("%w: expired", core.ErrUnauthenticated), http.StatusUnauthorized},
		{"busy", core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"storage", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
