package api

// Error is the body of every failed request: a machine-readable code and a
// human-readable message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeInvalidRequest        = "invalid_request"
	CodeNotFound              = "not_found"
	CodeConcurrentRunRejected = "concurrent_run_rejected"
	CodeInvalidActual         = "invalid_actual"
	CodeCurrencyMismatch      = "currency_mismatch"
	CodeAuthenticationFailure = "authentication_failure"
	CodeInternal              = "internal_error"
)
