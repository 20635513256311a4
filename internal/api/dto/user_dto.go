package dto

import (
	"time"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public user shape.
type UserResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Role       domain.UserRole `json:"role"`
	Department *string         `json:"department,omitempty"`
	Position   *string         `json:"position,omitempty"`
}

// FromUser maps a user omitting credentials.
func FromUser(user *domain.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
		Position:   user.Position,
	}
}
