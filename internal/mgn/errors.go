package mgn

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// APIError represents an MGN API error
type APIError struct {
	Code    string
	Message string
	Fault   smithy.ErrorFault
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	return fmt.Sprintf("MGN API error: %s - %s", e.Code, e.Message)
}

// IsThrottle returns true if the error is a throttling error
func (e *APIError) IsThrottle() bool {
	switch e.Code {
	case "ThrottlingException", "TooManyRequestsException", "RequestThrottled", "SlowDown":
		return true
	}
	return false
}

// IsServerFault returns true if the error originated on the service side
func (e *APIError) IsServerFault() bool {
	if e.Fault == smithy.FaultServer {
		return true
	}
	switch e.Code {
	case "InternalServerException", "ServiceUnavailableException":
		return true
	}
	return false
}

// IsValidation returns true if the error is a validation or eligibility error
func (e *APIError) IsValidation() bool {
	switch e.Code {
	case "ValidationException", "UninitializedAccountException",
		"ResourceNotFoundException", "ConflictException",
		"ServiceQuotaExceededException", "AccessDeniedException":
		return true
	}
	return false
}

// wrapAPIError converts an AWS SDK error into an *APIError, leaving other
// errors (network failures, context cancellation) untouched
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Fault:   apiErr.ErrorFault(),
		}
	}

	return err
}
