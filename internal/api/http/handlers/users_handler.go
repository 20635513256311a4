package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/campusdesk/servicedesk/internal/api/dto"
	"github.com/campusdesk/servicedesk/internal/auth"
	"github.com/campusdesk/servicedesk/internal/repository"
	apperrors "github.com/campusdesk/servicedesk/pkg/util"
)

// UsersHandler exposes login and the caller's own profile. The user directory
// itself is provisioned outside this service.
type UsersHandler struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
}

// NewUsersHandler returns a new handler instance.
func NewUsersHandler(users repository.UserRepository, tokens *auth.TokenManager) *UsersHandler {
	return &UsersHandler{users: users, tokens: tokens}
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := h.users.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(user)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(dto.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.FromUser(user),
	})
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.FromUser(user))
}
