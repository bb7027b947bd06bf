package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/dto"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/service"
	apperrors "github.com/lhs544/University-administrative-AI-document-review-automation/pkg/util/errorutil"
)

// ChatHandler exposes the conversation endpoints for students.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Create handles POST /chat/conversations.
func (h *ChatHandler) Create(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	conv, err := h.chat.Create(c.UserContext(), service.ChatOwner{
		SubjectID: principal.SubjectID,
		Upstream:  principal.Upstream,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ConversationResponse{
		ID:       conv.ID(),
		State:    string(conv.State()),
		Messages: conv.History(0),
	}})
}

// Messages handles GET /chat/conversations/:id/messages.
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	after := 0
	if raw := c.Query("after"); raw != "" {
		after, err = strconv.Atoi(raw)
		if err != nil || after < 0 {
			return fiber.NewError(http.StatusBadRequest, "after must be a non-negative integer")
		}
	}
	msgs, err := h.chat.History(c.UserContext(), principal.SubjectID, c.Params("id"), after)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(principal.SubjectID, c.Params("id"), msgs)})
}

// Input handles POST /chat/conversations/:id/input.
func (h *ChatHandler) Input(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChatInputRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	msgs, err := h.chat.Input(c.UserContext(), principal.SubjectID, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(principal.SubjectID, c.Params("id"), msgs)})
}

// Command handles POST /chat/conversations/:id/commands.
func (h *ChatHandler) Command(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChatCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	msgs, err := h.chat.Command(c.UserContext(), principal.SubjectID, c.Params("id"), domain.Command{
		Kind:   req.Kind,
		ID:     req.ID,
		Filter: req.Filter,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(principal.SubjectID, c.Params("id"), msgs)})
}

// Upload handles POST /chat/conversations/:id/files. The review verdict
// arrives later through Messages.
func (h *ChatHandler) Upload(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	msgs, err := h.chat.Upload(c.UserContext(), principal.SubjectID, c.Params("id"), domain.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": h.response(principal.SubjectID, c.Params("id"), msgs)})
}

// Close handles DELETE /chat/conversations/:id.
func (h *ChatHandler) Close(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.chat.Close(c.UserContext(), principal.SubjectID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) response(subjectID, id string, msgs []domain.Message) dto.ConversationResponse {
	resp := dto.ConversationResponse{ID: id, Messages: msgs}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	// evicted conversations have no live state
	if conv, err := h.chat.Get(subjectID, id); err == nil {
		resp.State = string(conv.State())
	}
	return resp
}

func mustPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
