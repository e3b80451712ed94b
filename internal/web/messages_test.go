package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"wrapped sentinel", fmt.Errorf("sort: %w: plate", table.ErrNotSortable), "TBL003", http.StatusBadRequest},
		{"action forbidden", fmt.Errorf("%w: delete", table.ErrActionForbidden), "TBL009", http.StatusForbidden},
		{"view", errViewNotFound, "VIEW001", http.StatusNotFound},
		{"api not found", &backend.APIError{Status: 404, Method: "DELETE", Path: "/buses/9"}, "API002", http.StatusNotFound},
		{"api unauthorized", &backend.APIError{Status: 401}, "API001", http.StatusBadGateway},
		{"api rejected", &backend.APIError{Status: 409, Message: "trip already started"}, "API003", http.StatusUnprocessableEntity},
		{"api down", &backend.APIError{Status: 503}, "API004", http.StatusBadGateway},
		{"deadline", fmt.Errorf("fetch buses: %w", context.DeadlineExceeded), "API005", http.StatusGatewayTimeout},
		{"pattern", errors.New("dial tcp 10.0.0.1:443: connect: Connection Refused"), "API004", http.StatusBadGateway},
		{"unknown", errors.New("boom"), "ERR000", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestMapError_APIMessageShown(t *testing.T) {
	msg := MapError(&backend.APIError{Status: 409, Message: "trip already started"})
	assert.Contains(t, msg.Message, "trip already started")
}
