package models

import "time"

// UserRateLimitExceededResponse is the API response when user quota is exceeded.
type UserRateLimitExceededResponse struct {
	Error          string    `json:"error"` // "user_rate_limit_exceeded"
	Message        string    `json:"message"`
	QuotaLimit     int       `json:"quota_limit"`
	QuotaRemaining int       `json:"quota_remaining"`
	QuotaReset     time.Time `json:"quota_reset"`
	RetryAfter     int       `json:"retry_after"`
}
