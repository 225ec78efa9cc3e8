package dto

import (
	"time"

	"github.com/tiback/helpdesk/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Role      domain.ActorRole `json:"role"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Password  string           `json:"password"`
	Phone     *string          `json:"phone,omitempty"`
	Address   *string          `json:"address,omitempty"`
	Specialty *string          `json:"specialty,omitempty"`
	Area      *string          `json:"area,omitempty"`
}

// LoginRequest payload.
type LoginRequest struct {
	Role     domain.ActorRole `json:"role"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
}

// ActorResponse is the public view of a directory entry.
type ActorResponse struct {
	ID        string           `json:"id"`
	Role      domain.ActorRole `json:"role"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     *string          `json:"phone,omitempty"`
	Address   *string          `json:"address,omitempty"`
	Specialty *string          `json:"specialty,omitempty"`
	Area      *string          `json:"area,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Actor     ActorResponse `json:"actor"`
}
