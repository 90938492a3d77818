package hc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]Check
		status int
	}{
		{"healthy", map[string]Check{"db": ok, "chain": ok}, http.StatusOK},
		{"degraded", map[string]Check{"db": ok, "chain": down}, http.StatusServiceUnavailable},
		{"no checks", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Handler("1.0.0", tt.checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hc", nil))

			assert.Equal(t, tt.status, w.Code)

			var body struct {
				Version string            `json:"version"`
				Checks  map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "1.0.0", body.Version)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}
