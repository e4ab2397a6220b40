package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-billing/internal/core"
)

func TestWriteCoreErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{core.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{core.ErrConstraintViolation, http.StatusUnprocessableEntity, "CONSTRAINT_VIOLATION"},
		{core.ErrInvalidStateTransition, http.StatusConflict, "INVALID_STATE"},
		{core.ErrInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{core.ErrOverReturn, http.StatusConflict, "OVER_RETURN"},
		{core.ErrExcessiveRefund, http.StatusConflict, "EXCESSIVE_REFUND"},
		{core.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/invoices/1", nil)

		// Wrapped errors must map the same as bare sentinels.
		writeCoreError(rec, req, fmt.Errorf("context: %w", tc.err))

		assert.Equal(t, tc.status, rec.Code, "status for %v", tc.err)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
	}
}

func TestWriteCoreErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeCoreError(rec, req, fmt.Errorf("pq: connection refused at 10.0.0.5"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, body.Error, "10.0.0.5")
}
