package model

// ErrorInfo holds structured failure information for an errored lead.
type ErrorInfo struct {
	FailedStep string `json:"failed_step"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	FailedAt   string `json:"failed_at"`
}
