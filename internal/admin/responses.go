package admin

import (
	"time"

	"sitepulse/internal/session"
)

// SessionsListResponse wraps the live sessions for HTTP response.
type SessionsListResponse struct {
	Sessions []session.Summary `json:"sessions"`
	Total    int               `json:"total"`
}

// AuditEntryResponse is one audit trail entry.
type AuditEntryResponse struct {
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Decision  string    `json:"decision,omitempty"`
	Region    string    `json:"region,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditTrailResponse lists a visitor's audit trail, oldest first.
type AuditTrailResponse struct {
	VisitorID string               `json:"visitor_id"`
	Events    []AuditEntryResponse `json:"events"`
}
