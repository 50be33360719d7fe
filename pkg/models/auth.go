package models

import "time"

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// InviteRequest represents an admin inviting an employee into the organization
type InviteRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Message string    `json:"message"`
	User    *UserInfo `json:"user"`
	Token   string    `json:"token,omitempty"`
}

// OrganizationSummary is the organization embedded in user responses
type OrganizationSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UserInfo represents user information in responses.
// The password hash is never part of it.
type UserInfo struct {
	ID             int                  `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Role           string               `json:"role"`
	OrganizationID *int                 `json:"organizationId,omitempty"`
	Organization   *OrganizationSummary `json:"organization,omitempty"`
	CreatedAt      *time.Time           `json:"createdAt,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
