package errors

const (
	HttpInternalError     = "internal_error"
	HttpInvalidRequest    = "invalid_request"
	HttpUnknownBrandError = "unknown_brand"
	HttpProviderAuthError = "provider_auth_error"
	HttpProviderError     = "provider_error"
)

// ErrorResponse is the error response body for scorecard API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
