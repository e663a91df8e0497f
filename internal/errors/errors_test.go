package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"card not found", ErrCardNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", ErrNotCardHolder, http.StatusForbidden, "FORBIDDEN"},
		{"inactive card", ErrCardInactive, http.StatusConflict, "INVALID_STATE"},
		{"insufficient funds", ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{"empty selection", ErrEmptySelection, http.StatusBadRequest, "EMPTY_SELECTION"},
		{"already processed", ErrAlreadyProcessed, http.StatusConflict, "ALREADY_PROCESSED"},
		{"wrapped", fmt.Errorf("finalize: %w", ErrInvalidTotal), http.StatusBadRequest, "INVALID_AMOUNT"},
		{"timeout", Storage(context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{"storage", Storage(stderrors.New("connection refused")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unclassified", stderrors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestStorageErrorHidesCause(t *testing.T) {
	cause := stderrors.New("dial tcp 10.0.0.1:3306: connection refused")
	err := Storage(cause)

	assert.Equal(t, KindStorage, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error", MapErrorToHTTP(err).Message)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindEmptySelection, KindOf(fmt.Errorf("x: %w", ErrEmptySelection)))
	assert.Equal(t, KindStorage, KindOf(stderrors.New("plain")))
}
