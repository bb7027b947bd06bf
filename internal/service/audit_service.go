package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/observability"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/repository"
)

// AuditService records conversation events: structured logs, metrics and
// the upload ledger.
type AuditService struct {
	dispatcher events.Dispatcher
	attempts   repository.UploadAttemptRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
	httpClient *http.Client
}

// AuditDependencies bundles collaborators for the audit service. Attempts
// may be nil when no database is configured.
type AuditDependencies struct {
	Dispatcher events.Dispatcher
	Attempts   repository.UploadAttemptRepository
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.NotificationConfig
	HTTPClient *http.Client
}

// NewAuditService creates the service.
func NewAuditService(deps AuditDependencies) *AuditService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: deps.Config.WebhookTimeout()}
	}
	return &AuditService{
		dispatcher: deps.Dispatcher,
		attempts:   deps.Attempts,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        deps.Config,
		httpClient: httpClient,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventConversationStarted, a.handleConversationStarted)
	a.dispatcher.Subscribe(events.EventConversationClosed, a.handleConversationClosed)
	a.dispatcher.Subscribe(events.EventSubmissionCreated, a.handleSubmissionCreated)
	a.dispatcher.Subscribe(events.EventReviewProgress, a.handleReviewProgress)
	a.dispatcher.Subscribe(events.EventReviewCompleted, a.handleReviewCompleted)
	a.dispatcher.Subscribe(events.EventReviewFailed, a.handleReviewFailed)
}

func (a *AuditService) handleConversationStarted(_ context.Context, event events.Event) error {
	a.logger.Info("ConversationStarted",
		zap.String("conversation_id", event.ConversationID),
		zap.String("actor", event.Actor))
	return nil
}

func (a *AuditService) handleConversationClosed(_ context.Context, event events.Event) error {
	a.logger.Info("ConversationClosed",
		zap.String("conversation_id", event.ConversationID),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleSubmissionCreated(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.SubmissionCreatedPayload)
	a.logger.Info("SubmissionCreated",
		zap.String("conversation_id", event.ConversationID),
		zap.String("submission_id", event.SubmissionID),
		zap.Any("payload", payload))
	a.metrics.RecordUpload(payload.Overlapping)

	if a.attempts == nil {
		return nil
	}
	return a.attempts.Create(ctx, &domain.UploadAttempt{
		ConversationID: event.ConversationID,
		SubjectID:      event.Actor,
		UploadSeq:      payload.UploadSeq,
		SubmissionID:   event.SubmissionID,
		DocTypeID:      payload.DocTypeID,
		FileName:       payload.FileName,
		Overlapping:    payload.Overlapping,
		Direct:         payload.Direct,
		Outcome:        domain.UploadOutcomePending,
	})
}

func (a *AuditService) handleReviewProgress(_ context.Context, event events.Event) error {
	a.logger.Debug("ReviewProgress",
		zap.String("conversation_id", event.ConversationID),
		zap.String("submission_id", event.SubmissionID),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleReviewCompleted(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ReviewCompletedPayload)
	a.logger.Info("ReviewCompleted",
		zap.String("conversation_id", event.ConversationID),
		zap.String("submission_id", event.SubmissionID),
		zap.String("status", string(payload.Status)),
		zap.Duration("waited", payload.Waited))
	a.metrics.RecordReviewOutcome(string(payload.Status), payload.Waited)
	a.notifyWebhook(ctx, event)

	if a.attempts == nil {
		return nil
	}
	return a.attempts.Complete(ctx, event.ConversationID, payload.UploadSeq,
		payload.Status, domain.UploadOutcomeFinished, strings.Join(payload.Reasons, "\n"))
}

func (a *AuditService) handleReviewFailed(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ReviewFailedPayload)
	a.logger.Warn("ReviewFailed",
		zap.String("conversation_id", event.ConversationID),
		zap.String("submission_id", event.SubmissionID),
		zap.String("error", payload.Error),
		zap.Bool("deadline", payload.Deadline))
	a.metrics.RecordReviewOutcome("FAILED", payload.Waited)
	a.notifyWebhook(ctx, event)

	if a.attempts == nil {
		return nil
	}
	if event.SubmissionID == "" {
		// the submission was never created, so there is no ledger row yet
		return a.attempts.Create(ctx, &domain.UploadAttempt{
			ConversationID: event.ConversationID,
			SubjectID:      event.Actor,
			UploadSeq:      payload.UploadSeq,
			Outcome:        domain.UploadOutcomeFailed,
			Detail:         payload.Error,
		})
	}
	return a.attempts.Complete(ctx, event.ConversationID, payload.UploadSeq,
		"", domain.UploadOutcomeFailed, payload.Error)
}

// notifyWebhook POSTs the event as JSON. Delivery failures are logged and
// never fail the ledger write.
func (a *AuditService) notifyWebhook(ctx context.Context, event events.Event) {
	url := strings.TrimSpace(a.cfg.WebhookURL)
	if url == "" {
		return
	}
	if err := a.postWebhook(ctx, url, event); err != nil {
		a.logger.Warn("webhook delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("submission_id", event.SubmissionID),
			zap.Error(err))
	}
}

func (a *AuditService) postWebhook(ctx context.Context, url string, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.WebhookTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Docchat-Event", string(event.Type))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
