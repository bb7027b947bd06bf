package dto

import (
	"time"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// ChatInputRequest carries typed text.
type ChatInputRequest struct {
	Text string `json:"text"`
}

// ChatCommandRequest carries a tagged command, usually copied from an option.
type ChatCommandRequest struct {
	Kind   domain.CommandKind  `json:"kind"`
	ID     string              `json:"id"`
	Filter domain.StatusFilter `json:"filter"`
}

// ConversationResponse describes a conversation and the messages an action produced.
type ConversationResponse struct {
	ID       string           `json:"id"`
	State    string           `json:"state"`
	Messages []domain.Message `json:"messages"`
}

// ConversationSummary is one row of the operator listing.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	State        string    `json:"state"`
	Messages     int       `json:"messages"`
	ActivePolls  int       `json:"active_polls"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// UploadAttemptResponse is one ledger row.
type UploadAttemptResponse struct {
	ID           string     `json:"id"`
	UploadSeq    int        `json:"upload_seq"`
	SubjectID    string     `json:"subject_id"`
	SubmissionID string     `json:"submission_id,omitempty"`
	DocTypeID    string     `json:"doc_type_id,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	Overlapping  bool       `json:"overlapping"`
	Direct       bool       `json:"direct"`
	Status       string     `json:"status,omitempty"`
	Outcome      string     `json:"outcome"`
	Detail       string     `json:"detail,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
