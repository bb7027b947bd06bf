package domain

import "time"

// MessageOrigin identifies who authored a transcript entry.
type MessageOrigin string

const (
	OriginBot  MessageOrigin = "bot"
	OriginUser MessageOrigin = "user"
)

// CommandKind enumerates the tagged commands a conversation understands.
type CommandKind string

const (
	CommandStartSubmission CommandKind = "START_SUBMISSION"
	CommandBack            CommandKind = "BACK"
	CommandCheckStatus     CommandKind = "CHECK_STATUS"
	CommandEnd             CommandKind = "END"
	CommandSelectDept      CommandKind = "SELECT_DEPARTMENT"
	CommandSelectDocType   CommandKind = "SELECT_DOC_TYPE"
	CommandFixAndResubmit  CommandKind = "FIX_AND_RESUBMIT"
	CommandSubmitDirectly  CommandKind = "SUBMIT_DIRECTLY"
)

// StatusFilter narrows a CHECK_STATUS command.
type StatusFilter string

const (
	StatusFilterAll      StatusFilter = ""
	StatusFilterApproved StatusFilter = "APPROVED"
	StatusFilterRejected StatusFilter = "REJECTED"
	StatusFilterInReview StatusFilter = "IN_REVIEW"
)

// Statuses expands a filter into document-server statuses. The empty filter
// returns nil, meaning no restriction.
func (f StatusFilter) Statuses() []SubmissionStatus {
	switch f {
	case StatusFilterApproved:
		return []SubmissionStatus{SubmissionStatusApproved}
	case StatusFilterRejected:
		return []SubmissionStatus{SubmissionStatusRejected, SubmissionStatusNeedsFix}
	case StatusFilterInReview:
		return []SubmissionStatus{SubmissionStatusBotReview, SubmissionStatusSubmitted, SubmissionStatusUnderReview}
	default:
		return nil
	}
}

// Command is a tagged user intent. ID carries the department or doc type id
// for selection commands; Filter is only read by CHECK_STATUS.
type Command struct {
	Kind   CommandKind  `json:"kind"`
	ID     string       `json:"id,omitempty"`
	Filter StatusFilter `json:"filter,omitempty"`
}

// Option is a selectable choice attached to a bot message.
type Option struct {
	Label   string  `json:"label"`
	Command Command `json:"command"`
}

// Message is one immutable transcript entry.
type Message struct {
	Seq           int           `json:"seq"`
	Origin        MessageOrigin `json:"origin"`
	Text          string        `json:"text"`
	Options       []Option      `json:"options,omitempty"`
	UploadEnabled bool          `json:"uploadEnabled,omitempty"`
	Accept        []string      `json:"accept,omitempty"`
	IsHTML        bool          `json:"isHtml,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}
