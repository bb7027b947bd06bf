package events

import (
	"time"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConversationStarted EventType = "conversation_started"
	EventConversationClosed  EventType = "conversation_closed"
	EventSubmissionCreated   EventType = "submission_created"
	EventReviewProgress      EventType = "review_progress"
	EventReviewCompleted     EventType = "review_completed"
	EventReviewFailed        EventType = "review_failed"
)

// Event represents something that happened inside a conversation.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	SubmissionID   string    `json:"submission_id,omitempty"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload,omitempty"`
}

// ConversationClosedPayload payload.
type ConversationClosedPayload struct {
	Reason string `json:"reason"`
}

// SubmissionCreatedPayload payload.
type SubmissionCreatedPayload struct {
	UploadSeq    int    `json:"upload_seq"`
	DocTypeID    string `json:"doc_type_id,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	Resubmission bool   `json:"resubmission"`
	Direct       bool   `json:"direct"`
	Overlapping  bool   `json:"overlapping"`
}

// ReviewProgressPayload payload.
type ReviewProgressPayload struct {
	UploadSeq int                     `json:"upload_seq"`
	Minutes   int                     `json:"minutes"`
	Status    domain.SubmissionStatus `json:"status"`
}

// ReviewCompletedPayload payload.
type ReviewCompletedPayload struct {
	UploadSeq int                     `json:"upload_seq"`
	Status    domain.SubmissionStatus `json:"status"`
	Reasons   []string                `json:"reasons,omitempty"`
	Waited    time.Duration           `json:"waited"`
}

// ReviewFailedPayload payload.
type ReviewFailedPayload struct {
	UploadSeq int           `json:"upload_seq"`
	Error     string        `json:"error"`
	Deadline  bool          `json:"deadline"`
	Waited    time.Duration `json:"waited"`
}
