package types

// ErrorEnvelope is the body written for every non-webhook error response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
