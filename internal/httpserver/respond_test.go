package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"travelmate/internal/domain"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		logged  bool
	}{
		{"validation", fmt.Errorf("%w: body is empty", domain.ErrValidation), http.StatusBadRequest, "invalid input: body is empty", false},
		{"not found", fmt.Errorf("notification n1: %w", domain.ErrNotFound), http.StatusNotFound, "notification n1: resource not found", false},
		{"transient", fmt.Errorf("insert: %w", domain.ErrTransientStore), http.StatusServiceUnavailable, "temporarily unavailable, try again", true},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "internal error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logs, nil))
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)

			writeError(rec, req, log, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeBody[errorResponse](t, rec).Error)
			if tt.logged {
				assert.Contains(t, logs.String(), "request failed")
				assert.Contains(t, logs.String(), "path=/api/conversations")
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}
