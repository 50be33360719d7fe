package models

import "time"

// AuditLogResponse represents one entry of an organization's audit trail
type AuditLogResponse struct {
	ID           int            `json:"id"`
	Action       string         `json:"action"`
	UserID       *int           `json:"userId"`
	ResourceType *string        `json:"resourceType,omitempty"`
	ResourceID   *string        `json:"resourceId,omitempty"`
	IPAddress    *string        `json:"ipAddress,omitempty"`
	UserAgent    *string        `json:"userAgent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
