// Package dto contains Data Transfer Objects for HTTP request and response payloads
package dto

// Response statuses shared by every JSON endpoint
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse represents the error envelope and the minimal success envelope
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse reports liveness and store reachability
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Redis     string `json:"redis"`
	Version   string `json:"version,omitempty"`
}
