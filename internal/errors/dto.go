package errors

// ErrorResponse is the wire shape every failed request resolves to. Validation
// failures surface as 422, lookups misses as 404, provider trouble as 502/503,
// everything else as 500.
type ErrorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Retryable    bool   `json:"retryable"`
}

// NewErrorResponse derives the response body from an error's taxonomy mark.
func NewErrorResponse(err error, display string) ErrorResponse {
	return ErrorResponse{
		ErrorCode:    CodeFromErr(err),
		ErrorMessage: display,
		Retryable:    IsRetryable(err),
	}
}
