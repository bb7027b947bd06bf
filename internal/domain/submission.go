package domain

import "time"

// SubmissionStatus enumerates the lifecycle states of a submission on the document server.
type SubmissionStatus string

const (
	SubmissionStatusDraft       SubmissionStatus = "DRAFT"
	SubmissionStatusBotReview   SubmissionStatus = "BOT_REVIEW"
	SubmissionStatusNeedsFix    SubmissionStatus = "NEEDS_FIX"
	SubmissionStatusSubmitted   SubmissionStatus = "SUBMITTED"
	SubmissionStatusUnderReview SubmissionStatus = "UNDER_REVIEW"
	SubmissionStatusApproved    SubmissionStatus = "APPROVED"
	SubmissionStatusRejected    SubmissionStatus = "REJECTED"
)

var terminalStatuses = map[SubmissionStatus]struct{}{
	SubmissionStatusNeedsFix:    {},
	SubmissionStatusRejected:    {},
	SubmissionStatusSubmitted:   {},
	SubmissionStatusUnderReview: {},
	SubmissionStatusApproved:    {},
}

// IsTerminal reports whether polling may stop at this status.
// Unknown statuses are treated as non-terminal.
func (s SubmissionStatus) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// SubmitMode selects how a submission leaves the student's hands.
type SubmitMode string

const (
	// SubmitModeDirect forwards the submission to administrators, skipping the bot verdict.
	SubmitModeDirect SubmitMode = "DIRECT"
	// SubmitModeFinal sends a corrected submission back through automatic review.
	SubmitModeFinal SubmitMode = "FINAL"
)

// FieldNote is an administrator comment attached to a single form field.
type FieldNote struct {
	Comment string
}

// AdminDecision is the administrator part of a submission summary.
type AdminDecision struct {
	DecisionMemo string
	FieldNotes   []FieldNote
}

// SubmissionSummary is a point-in-time snapshot of a submission.
type SubmissionSummary struct {
	ID          string
	Status      SubmissionStatus
	SubmittedAt string
	Admin       *AdminDecision
}

// Finding is one structured issue reported by automatic review.
type Finding struct {
	Label   string
	Message string
}

// ReviewResult is the automatic review verdict for a submission.
type ReviewResult struct {
	SubmissionID string
	Status       SubmissionStatus
	Verdict      string
	Reason       string
	Findings     []Finding
	DebugTexts   []string
}

// SubmissionRow is one line of the student's submission history.
type SubmissionRow struct {
	ID          string
	Status      SubmissionStatus
	Title       string
	SubmittedAt string
}

// SubmissionFilter narrows the submission history listing.
type SubmissionFilter struct {
	Statuses []SubmissionStatus
	Limit    int
}

// Upload is a file handed over by the student.
type Upload struct {
	FileName    string
	ContentType string
	Content     []byte
}

// UploadOutcome records how an upload attempt ended.
type UploadOutcome string

const (
	UploadOutcomePending  UploadOutcome = "PENDING"
	UploadOutcomeFinished UploadOutcome = "FINISHED"
	UploadOutcomeFailed   UploadOutcome = "FAILED"
)

// UploadAttempt is one row of the upload ledger kept by the gateway.
type UploadAttempt struct {
	ID             string
	ConversationID string
	SubjectID      string
	UploadSeq      int
	SubmissionID   string
	DocTypeID      string
	FileName       string
	Overlapping    bool
	Direct         bool
	Status         SubmissionStatus
	Outcome        UploadOutcome
	Detail         string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
