package models

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidID is returned when an identifier is not a positive integer
var ErrInvalidID = errors.New("invalid id")

// ID accepts a JSON number or a numeric string
type ID int

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	n, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// ParseID parses a positive integer identifier
func ParseID(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return n, nil
}

// CreateTicketRequest represents a failure report for an asset
type CreateTicketRequest struct {
	Description string `json:"description" validate:"required,max=5000"`
	AssetID     ID     `json:"assetId" validate:"required"`
}

// TicketUser is the reporter embedded in ticket responses
type TicketUser struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TicketAsset is the asset embedded in ticket responses
type TicketAsset struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serialNumber"`
	Type         string `json:"type"`
}

// TicketResponse represents a ticket with reporter and asset expanded
type TicketResponse struct {
	ID             int          `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Status         string       `json:"status"`
	UserID         int          `json:"userId"`
	AssetID        *int         `json:"assetId"`
	OrganizationID int          `json:"organizationId"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	User           *TicketUser  `json:"user,omitempty"`
	Asset          *TicketAsset `json:"asset,omitempty"`
}

// AssetNameOr returns the asset name, or fallback when the asset is gone
func (t *TicketResponse) AssetNameOr(fallback string) string {
	if t.Asset == nil || t.Asset.Name == "" {
		return fallback
	}
	return t.Asset.Name
}
