package handler

import (
	"time"

	"github.com/devjobs/devjobs-api/internal/core/domain"
	"github.com/devjobs/devjobs-api/internal/core/ports"
)

type registerRequest struct {
	Email     string `json:"email"      validate:"required,email,max=180"`
	Password  string `json:"password"   validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

type issueTokenRequest struct {
	TTLHours int `json:"ttl_hours" validate:"required,gt=0,lte=720"`
}

// identityResponse is the public projection of an identity. Password hash
// and token never appear here.
type identityResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      identityResponse `json:"user"`
}

type meResponse struct {
	identityResponse
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	TokenExpiringSoon bool       `json:"token_expiring_soon"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type purgeResponse struct {
	Cleared int64 `json:"cleared"`
}

func toIdentityResponse(i *domain.Identity) identityResponse {
	return identityResponse{
		ID:        i.ID,
		Email:     i.Email,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Roles:     i.Roles(),
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func toSessionResponse(s *ports.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      toIdentityResponse(s.Identity),
	}
}
