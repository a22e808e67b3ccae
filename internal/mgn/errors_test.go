package mgn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		code        string
		fault       smithy.ErrorFault
		throttle    bool
		serverFault bool
		validation  bool
	}{
		{code: "ThrottlingException", throttle: true},
		{code: "TooManyRequestsException", throttle: true},
		{code: "RequestThrottled", throttle: true},
		{code: "SlowDown", throttle: true},
		{code: "InternalServerException", serverFault: true},
		{code: "ServiceUnavailableException", serverFault: true},
		{code: "SomeNewException", fault: smithy.FaultServer, serverFault: true},
		{code: "ValidationException", validation: true},
		{code: "UninitializedAccountException", validation: true},
		{code: "ResourceNotFoundException", validation: true},
		{code: "ConflictException", validation: true},
		{code: "ServiceQuotaExceededException", validation: true},
		{code: "AccessDeniedException", validation: true},
		{code: "SomethingElse"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := &APIError{Code: tt.code, Message: "boom", Fault: tt.fault}
			assert.Equal(t, tt.throttle, err.IsThrottle())
			assert.Equal(t, tt.serverFault, err.IsServerFault())
			assert.Equal(t, tt.validation, err.IsValidation())
		})
	}
}

func TestWrapAPIError(t *testing.T) {
	assert.NoError(t, wrapAPIError(nil))

	sdkErr := &smithy.GenericAPIError{
		Code:    "ThrottlingException",
		Message: "Rate exceeded",
		Fault:   smithy.FaultClient,
	}
	wrapped := wrapAPIError(fmt.Errorf("operation error MGN: StartTest: %w", sdkErr))

	var apiErr *APIError
	require.ErrorAs(t, wrapped, &apiErr)
	assert.Equal(t, "ThrottlingException", apiErr.Code)
	assert.Equal(t, "Rate exceeded", apiErr.Message)
	assert.True(t, apiErr.IsThrottle())
	assert.Contains(t, wrapped.Error(), "ThrottlingException")

	// Non-SDK errors pass through untouched.
	plain := errors.New("connection reset")
	assert.Equal(t, plain, wrapAPIError(plain))
}
