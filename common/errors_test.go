package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{NotFoundError("plan %d not found", 7), CodeNotFound, http.StatusNotFound},
		{ConflictError("tenant already subscribed"), CodeConflict, http.StatusConflict},
		{ForbiddenError("payment method not owned by delegator"), CodeForbidden, http.StatusForbidden},
		{PaymentFailedError("card declined"), CodePaymentFailed, http.StatusPaymentRequired},
		{InvalidSignatureError("bad webhook signature"), CodeInvalidSignature, http.StatusBadRequest},
		{ValidationError("amount must not be negative"), CodeValidation, http.StatusBadRequest},
		{UpstreamError(errors.New("boom"), "gateway call failed"), CodeUpstream, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, CodeOf(tt.err), tt.err.Error())
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestNilErrorHelpers(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Empty(t, MessageOf(nil))
}

func TestUnclassifiedErrorDefaults(t *testing.T) {
	err := errors.New("something broke")
	assert.Equal(t, CodeUpstream, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "something broke", MessageOf(err))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := UpstreamError(cause, "failed to list prices")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to list prices", MessageOf(err))
	assert.Contains(t, err.Error(), "connection reset")

	// Classification survives further wrapping.
	wrapped := fmt.Errorf("sync run: %w", err)
	assert.Equal(t, CodeUpstream, CodeOf(wrapped))
	assert.Equal(t, "failed to list prices", MessageOf(wrapped))
}
