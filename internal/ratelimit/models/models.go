package models

import (
	"fmt"
	"time"

	id "fedlearn/pkg/domain"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassUpload: dataset uploads, which derive keys and encrypt payloads.
	ClassUpload EndpointClass = "upload"
	// ClassTraining: pipeline generation and training runs.
	ClassTraining EndpointClass = "training"
	// ClassRead: listings, run lookups and encryption status.
	ClassRead EndpointClass = "read"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassUpload, ClassTraining, ClassRead:
		return true
	}
	return false
}

// Limit is the number of requests allowed per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult is the outcome of one rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// UserKey is the bucket key for a user within an endpoint class.
func UserKey(class EndpointClass, userID id.UserID) string {
	return fmt.Sprintf("rl:%s:user:%d", class, int64(userID))
}
