package models

import "time"

// AssetResponse represents an asset
type AssetResponse struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	SerialNumber   string    `json:"serialNumber"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	OrganizationID int       `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateAssetRequest represents a request to register an asset
type CreateAssetRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	SerialNumber string `json:"serialNumber" validate:"required,max=255"`
	Type         string `json:"type" validate:"required,max=100"`
	Status       string `json:"status" validate:"omitempty,oneof=OPERATIONAL REPAIR RETIRED"`
}
