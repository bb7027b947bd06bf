package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/dto"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/repository"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/service"
	apperrors "github.com/lhs544/University-administrative-AI-document-review-automation/pkg/util/errorutil"
)

// OpsHandler exposes operator views over live conversations and the upload ledger.
type OpsHandler struct {
	chat     *service.ChatService
	attempts repository.UploadAttemptRepository
}

// NewOpsHandler constructs handler. attempts is nil when postgres is not configured.
func NewOpsHandler(chat *service.ChatService, attempts repository.UploadAttemptRepository) *OpsHandler {
	return &OpsHandler{chat: chat, attempts: attempts}
}

// ListConversations handles GET /ops/conversations.
func (h *OpsHandler) ListConversations(c *fiber.Ctx) error {
	infos := h.chat.List()
	out := make([]dto.ConversationSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, dto.ConversationSummary{
			ID:           info.ID,
			Owner:        info.Owner,
			State:        string(info.State),
			Messages:     info.Messages,
			ActivePolls:  info.ActivePolls,
			CreatedAt:    info.CreatedAt,
			LastActivity: info.LastActivity,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// ListUploads handles GET /ops/conversations/:id/uploads.
// Supports ?outcome=FAILED,FINISHED, ?since=RFC3339, ?limit and ?offset.
func (h *OpsHandler) ListUploads(c *fiber.Ctx) error {
	if h.attempts == nil {
		return apperrors.NewDomainError("LEDGER_DISABLED", "upload ledger is not configured", http.StatusServiceUnavailable, nil)
	}
	id := c.Params("id")
	filter := repository.UploadAttemptFilter{
		ConversationID: &id,
		Limit:          c.QueryInt("limit", 50),
		Offset:         c.QueryInt("offset", 0),
	}
	if raw := c.Query("outcome"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			switch outcome := domain.UploadOutcome(strings.ToUpper(strings.TrimSpace(part))); outcome {
			case domain.UploadOutcomePending, domain.UploadOutcomeFinished, domain.UploadOutcomeFailed:
				filter.Outcomes = append(filter.Outcomes, outcome)
			default:
				return apperrors.NewValidationError("unknown outcome", map[string]any{"outcome": part})
			}
		}
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperrors.NewValidationError("since must be RFC3339", map[string]any{"since": raw})
		}
		filter.CreatedFrom = &since
	}

	rows, err := h.attempts.ListWithFilter(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]dto.UploadAttemptResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.UploadAttemptResponse{
			ID:           row.ID,
			UploadSeq:    row.UploadSeq,
			SubjectID:    row.SubjectID,
			SubmissionID: row.SubmissionID,
			DocTypeID:    row.DocTypeID,
			FileName:     row.FileName,
			Overlapping:  row.Overlapping,
			Direct:       row.Direct,
			Status:       string(row.Status),
			Outcome:      string(row.Outcome),
			Detail:       row.Detail,
			CreatedAt:    row.CreatedAt,
			CompletedAt:  row.CompletedAt,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// Terminate handles DELETE /ops/conversations/:id.
func (h *OpsHandler) Terminate(c *fiber.Ctx) error {
	if err := h.chat.Terminate(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
