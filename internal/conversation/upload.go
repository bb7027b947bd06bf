package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/docserver"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/poller"
)

func (c *Conversation) upload(ctx context.Context, file domain.Upload) (func(context.Context), error) {
	cat := c.cat()

	c.mu.Lock()
	docType := c.selectedDocType
	target := c.resubmitTarget
	var deadline string
	if target != "" {
		deadline = c.resubmitDeadlineLocked(target)
	} else if c.deadline != nil {
		deadline = c.deadline.Deadline
	}
	c.mu.Unlock()

	if docType == nil && target == "" {
		c.bot(domain.Message{Text: cat.Texts.SelectDocTypeFirst})
		return nil, nil
	}
	// a returned submission is still bound to its doc type's deadline
	if IsExpired(deadline, c.now()) {
		c.bot(c.deadlineExpired(deadline))
		return nil, nil
	}

	pc, overlapping := c.beginUpload(false, deadline)
	c.user("📎 " + file.FileName)
	c.bot(domain.Message{Text: cat.Texts.Processing})

	log := c.logger.With(zap.Int("upload_seq", pc.seq), zap.String("file_name", file.FileName))
	if overlapping {
		log.Info("upload started while another review is pending")
	}

	var submissionID string
	if target != "" {
		if _, err := c.docs.UpdateSubmission(ctx, target, fieldsJSONEmpty, &file); err != nil {
			c.reportFailure(ctx, pc, target, err)
			return nil, nil
		}
		if _, err := c.docs.SubmitSubmission(ctx, target, domain.SubmitModeFinal); err != nil {
			c.reportFailure(ctx, pc, target, err)
			return nil, nil
		}
		submissionID = target
	} else {
		summary, err := c.docs.CreateSubmission(ctx, docType.ID, fieldsJSONEmpty, file)
		if err != nil {
			c.reportFailure(ctx, pc, "", err)
			return nil, nil
		}
		if summary == nil || summary.ID == "" {
			c.reportFailure(ctx, pc, "", errors.New(cat.Texts.MissingSubmissionID))
			return nil, nil
		}
		submissionID = summary.ID
	}

	c.mu.Lock()
	c.resubmitTarget = ""
	c.mu.Unlock()

	payload := events.SubmissionCreatedPayload{
		UploadSeq:    pc.seq,
		FileName:     file.FileName,
		Resubmission: target != "",
		Overlapping:  overlapping,
	}
	if docType != nil {
		payload.DocTypeID = docType.ID
	}
	c.publish(ctx, events.Event{Type: events.EventSubmissionCreated, SubmissionID: submissionID, Payload: payload})

	return func(runCtx context.Context) {
		c.awaitReview(runCtx, pc, submissionID)
	}, nil
}

func (c *Conversation) fixAndResubmit() {
	cat := c.cat()

	c.mu.Lock()
	last := c.lastResult
	ok := last != nil && (last.status == domain.SubmissionStatusNeedsFix || last.status == domain.SubmissionStatusRejected)
	if ok {
		c.resubmitTarget = last.submissionID
		c.setStateLocked(StateUploadPrompt)
	}
	c.mu.Unlock()

	if !ok {
		c.bot(c.greeting(cat.Texts.NothingToResubmit))
		return
	}
	c.bot(domain.Message{
		Text:          cat.Texts.ResubmitPrompt,
		UploadEnabled: true,
		Accept:        cat.UploadAccept,
		Options: []domain.Option{
			{Label: cat.Labels.SubmitDirectly, Command: domain.Command{Kind: domain.CommandSubmitDirectly}},
		},
	})
}

// submitDirectly forwards the returned submission to administrators as is.
func (c *Conversation) submitDirectly(ctx context.Context) (func(context.Context), error) {
	cat := c.cat()

	c.mu.Lock()
	target := c.resubmitTarget
	if target == "" && c.lastResult != nil {
		target = c.lastResult.submissionID
	}
	deadline := c.resubmitDeadlineLocked(target)
	c.mu.Unlock()

	if target == "" {
		c.bot(c.greeting(cat.Texts.NothingToResubmit))
		return nil, nil
	}
	if IsExpired(deadline, c.now()) {
		c.bot(c.deadlineExpired(deadline))
		return nil, nil
	}

	pc, overlapping := c.beginUpload(true, deadline)
	c.bot(domain.Message{Text: cat.Texts.Submitting})

	if _, err := c.docs.SubmitSubmission(ctx, target, domain.SubmitModeDirect); err != nil {
		c.reportFailure(ctx, pc, target, err)
		return nil, nil
	}

	c.mu.Lock()
	c.resubmitTarget = ""
	c.mu.Unlock()

	c.publish(ctx, events.Event{
		Type:         events.EventSubmissionCreated,
		SubmissionID: target,
		Payload: events.SubmissionCreatedPayload{
			UploadSeq:    pc.seq,
			Resubmission: true,
			Direct:       true,
			Overlapping:  overlapping,
		},
	})

	return func(runCtx context.Context) {
		c.awaitReview(runCtx, pc, target)
	}, nil
}

// resubmitDeadlineLocked returns the deadline recorded with the returned
// submission id, or "" when none is known. c.mu must be held.
func (c *Conversation) resubmitDeadlineLocked(submissionID string) string {
	if submissionID == "" || c.lastResult == nil || c.lastResult.submissionID != submissionID {
		return ""
	}
	return c.lastResult.deadline
}

// beginUpload registers a poll context. Earlier uploads keep polling; the
// new one is flagged as overlapping when any of them is still pending.
func (c *Conversation) beginUpload(direct bool, deadline string) (*pollContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploadSeq++
	pc := &pollContext{seq: c.uploadSeq, direct: direct, deadline: deadline, startedAt: c.clock.Now()}
	overlapping := len(c.activePolls) > 0
	c.activePolls[pc.seq] = pc
	c.setStateLocked(StateUploading)
	return pc, overlapping
}

// finishPoll unregisters pc and reports whether it was the latest upload.
func (c *Conversation) finishPoll(pc *pollContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activePolls, pc.seq)
	return pc.seq == c.uploadSeq
}

func (c *Conversation) awaitReview(ctx context.Context, pc *pollContext, submissionID string) {
	opts := c.pollOpts
	if opts.Clock == nil {
		opts.Clock = c.clock
	}
	opts.Logger = c.logger
	opts.IsCancelled = pc.cancelled.Load
	opts.OnProgress = func(elapsed time.Duration, status domain.SubmissionStatus) {
		c.reportProgress(ctx, pc, submissionID, elapsed, status)
	}

	summary, err := poller.PollUntilDone(ctx, c.docs.SubmissionSummary, submissionID, opts)
	if pc.cancelled.Load() || ctx.Err() != nil {
		c.finishPoll(pc)
		c.logger.Debug("review wait abandoned", zap.Int("upload_seq", pc.seq), zap.String("submission_id", submissionID))
		return
	}
	if err != nil {
		c.reportFailure(ctx, pc, submissionID, err)
		return
	}
	if summary == nil {
		c.reportFailure(ctx, pc, submissionID, errors.New(c.cat().Texts.ResultUnavailable))
		return
	}
	c.showResult(ctx, pc, submissionID, summary)
}

func (c *Conversation) reportProgress(ctx context.Context, pc *pollContext, submissionID string, elapsed time.Duration, status domain.SubmissionStatus) {
	if pc.cancelled.Load() {
		return
	}
	every := int(c.progressEvery() / time.Minute)
	if every <= 0 {
		every = 1
	}
	minutes := int(elapsed / time.Minute)
	if minutes/every <= pc.lastMinute/every {
		return
	}
	pc.lastMinute = minutes

	cat := c.cat()
	var label string
	switch status {
	case domain.SubmissionStatusBotReview:
		label = cat.Texts.OCRInProgress
	case "":
		label = cat.Texts.Waiting
	default:
		label = string(status)
	}
	c.bot(domain.Message{Text: fill(cat.Texts.Progress, "minutes", strconv.Itoa(minutes), "status", label)})
	c.publish(ctx, events.Event{
		Type:         events.EventReviewProgress,
		SubmissionID: submissionID,
		Payload:      events.ReviewProgressPayload{UploadSeq: pc.seq, Minutes: minutes, Status: status},
	})
}

func (c *Conversation) progressEvery() time.Duration {
	if c.pollOpts.ProgressInterval > 0 {
		return c.pollOpts.ProgressInterval
	}
	return poller.DefaultOptions().ProgressInterval
}

func (c *Conversation) showResult(ctx context.Context, pc *pollContext, id string, summary *domain.SubmissionSummary) {
	cat := c.cat()
	var (
		msg     domain.Message
		reasons []string
	)

	switch summary.Status {
	case domain.SubmissionStatusNeedsFix:
		reasons = FetchReviewReasons(ctx, c.docs, id, c.logger)
		reason := cat.Texts.NoReason
		if len(reasons) > 0 {
			reason = "\n- " + strings.Join(reasons, "\n- ")
		}
		msg = domain.Message{
			Text: fill(cat.Texts.ReviewFailed, "reason", reason),
			Options: []domain.Option{
				{Label: cat.Labels.FixAndResubmit, Command: domain.Command{Kind: domain.CommandFixAndResubmit}},
				{Label: cat.Labels.SubmitDirectly, Command: domain.Command{Kind: domain.CommandSubmitDirectly}},
			},
		}
	case domain.SubmissionStatusRejected:
		detail, err := c.docs.SubmissionSummary(ctx, id)
		if err != nil {
			c.reportFailure(ctx, pc, id, err)
			return
		}
		reasons = rejectionReasons(detail, cat.Texts.NoRejectionMemo)
		msg = domain.Message{
			Text: fill(cat.Texts.AdminRejected, "reasons", strings.Join(reasons, "\n- ")),
			Options: []domain.Option{
				{Label: cat.Labels.FixAndResubmit, Command: domain.Command{Kind: domain.CommandFixAndResubmit}},
				{Label: cat.Labels.Back, Command: domain.Command{Kind: domain.CommandBack}},
				{Label: cat.Labels.Exit, Command: domain.Command{Kind: domain.CommandEnd}},
			},
		}
	case domain.SubmissionStatusSubmitted, domain.SubmissionStatusUnderReview, domain.SubmissionStatusApproved:
		text := cat.Texts.ReviewPassed
		if pc.direct && summary.Status == domain.SubmissionStatusSubmitted {
			text = cat.Texts.ForwardedToAdmin
		}
		msg = domain.Message{Text: text}
	default:
		msg = domain.Message{
			Text: cat.Texts.StillInReview,
			Options: []domain.Option{
				{Label: cat.Labels.CheckStatus, Command: domain.Command{Kind: domain.CommandCheckStatus}},
			},
		}
	}

	latest := c.finishPoll(pc)
	if pc.cancelled.Load() {
		return
	}
	c.bot(msg)

	c.mu.Lock()
	if summary.Status == domain.SubmissionStatusNeedsFix || summary.Status == domain.SubmissionStatusRejected {
		c.lastResult = &resultRef{submissionID: id, status: summary.Status, deadline: pc.deadline}
	}
	if latest && c.state == StateUploading {
		c.setStateLocked(StateResultDisplayed)
	}
	c.mu.Unlock()

	c.publish(ctx, events.Event{
		Type:         events.EventReviewCompleted,
		SubmissionID: id,
		Payload: events.ReviewCompletedPayload{
			UploadSeq: pc.seq,
			Status:    summary.Status,
			Reasons:   reasons,
			Waited:    c.clock.Now().Sub(pc.startedAt),
		},
	})
}

// rejectionReasons lists field comments followed by the decision memo.
func rejectionReasons(detail *domain.SubmissionSummary, fallbackMemo string) []string {
	var reasons []string
	memo := ""
	if detail != nil && detail.Admin != nil {
		for _, note := range detail.Admin.FieldNotes {
			if strings.TrimSpace(note.Comment) != "" {
				reasons = append(reasons, note.Comment)
			}
		}
		memo = detail.Admin.DecisionMemo
	}
	if strings.TrimSpace(memo) == "" {
		memo = fallbackMemo
	}
	return append(reasons, memo)
}

func (c *Conversation) reportFailure(ctx context.Context, pc *pollContext, submissionID string, err error) {
	latest := c.finishPoll(pc)
	if pc.cancelled.Load() {
		return
	}
	cat := c.cat()
	message := docserver.ErrorMessage(err)
	deadlineHit := cat.IsDeadlineError(message)

	c.logger.Warn("submission review failed",
		zap.Int("upload_seq", pc.seq),
		zap.String("submission_id", submissionID),
		zap.Bool("deadline", deadlineHit),
		zap.Error(err))

	if deadlineHit {
		raw := pc.deadline
		c.mu.Lock()
		if raw == "" && c.deadline != nil {
			raw = c.deadline.Deadline
		}
		c.mu.Unlock()
		c.bot(c.deadlineExpired(raw))
	} else {
		c.bot(domain.Message{Text: fill(cat.Texts.AutomaticReviewError, "error", message)})
	}

	c.mu.Lock()
	if latest && c.state == StateUploading {
		c.setStateLocked(StateUploadPrompt)
	}
	c.mu.Unlock()

	c.publish(ctx, events.Event{
		Type:         events.EventReviewFailed,
		SubmissionID: submissionID,
		Payload: events.ReviewFailedPayload{
			UploadSeq: pc.seq,
			Error:     message,
			Deadline:  deadlineHit,
			Waited:    c.clock.Now().Sub(pc.startedAt),
		},
	})
}
