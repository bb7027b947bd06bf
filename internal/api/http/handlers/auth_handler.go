package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/dto"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/service"
	apperrors "github.com/lhs544/University-administrative-AI-document-review-automation/pkg/util/errorutil"
)

// MemberFetcher loads the account behind a document server session.
type MemberFetcher func(ctx context.Context, session string) (*domain.Member, error)

// AuthHandler exposes login endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	members MemberFetcher
}

// NewAuthHandler constructs handler. members may be nil.
func NewAuthHandler(authService *service.AuthService, members MemberFetcher) *AuthHandler {
	return &AuthHandler{auth: authService, members: members}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.StudentLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.MemberID == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "memberId and password required")
	}

	member, token, exp, err := h.auth.LoginStudent(c.UserContext(), req.MemberID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"member": memberResponse(member),
			"auth":   dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// OperatorLogin handles POST /auth/operator/login.
func (h *AuthHandler) OperatorLogin(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	token, exp, err := h.auth.LoginOperator(c.UserContext(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"auth": dto.AuthResponse{Token: token, ExpiresAt: exp}}})
}

// Me handles GET /auth/me. Students are re-checked against the document
// server so an expired upstream session surfaces as 401.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.Upstream == "" || h.members == nil {
		return c.JSON(fiber.Map{"data": dto.MemberResponse{
			MemberID: principal.SubjectID,
			Name:     principal.Name,
			Role:     string(principal.Role),
		}})
	}
	member, err := h.members(c.UserContext(), principal.Upstream)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(member)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	subject := ""
	if principal != nil {
		subject = principal.SubjectID
	}
	if err := h.auth.Logout(c.UserContext(), subject); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func memberResponse(m *domain.Member) dto.MemberResponse {
	return dto.MemberResponse{
		MemberID:       m.MemberID,
		Name:           m.Name,
		Role:           string(m.Role),
		Department:     m.Department,
		AcademicStatus: m.AcademicStatus,
	}
}
