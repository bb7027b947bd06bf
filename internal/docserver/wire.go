package docserver

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func firstID(ids ...flexID) string {
	for _, id := range ids {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type departmentWire struct {
	ID           flexID `json:"id"`
	DepartmentID flexID `json:"departmentId"`
	Name         string `json:"name"`
	LeftLabel    string `json:"leftLabel"`
}

func (w departmentWire) toDomain() (domain.Department, bool) {
	d := domain.Department{
		ID:        firstID(w.ID, w.DepartmentID),
		Name:      w.Name,
		LeftLabel: w.LeftLabel,
	}
	return d, d.ID != "" && d.Name != ""
}

type docTypeWire struct {
	DocTypeID flexID `json:"docTypeId"`
	ID        flexID `json:"id"`
	Title     string `json:"title"`
	Name      string `json:"name"`
}

func (w docTypeWire) toDomain() (domain.DocType, bool) {
	dt := domain.DocType{
		ID:   firstID(w.DocTypeID, w.ID),
		Name: firstString(w.Title, w.Name),
	}
	return dt, dt.ID != "" && dt.Name != ""
}

type requiredFieldObject struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

// requiredFieldFromWire accepts a bare string or an object carrying label,
// name or title. Anything else becomes a numbered placeholder.
func requiredFieldFromWire(raw json.RawMessage, idx int) domain.RequiredField {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.RequiredField{Label: s}
	}
	var obj requiredFieldObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		if label := firstString(obj.Label, obj.Name, obj.Title); label != "" {
			return domain.RequiredField{Label: label}
		}
	}
	return domain.RequiredField{Label: "Required item " + strconv.Itoa(idx+1)}
}

// deadlineFromWire accepts {"deadline": "..."}, a JSON string, or plain text.
func deadlineFromWire(body []byte) *domain.DeadlineInfo {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	var value string
	var obj struct {
		Deadline *string `json:"deadline"`
	}
	switch {
	case json.Unmarshal(body, &value) == nil:
	case json.Unmarshal(body, &obj) == nil:
		if obj.Deadline != nil {
			value = *obj.Deadline
		}
	default:
		value = string(body)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &domain.DeadlineInfo{Deadline: value}
}

type fieldNoteWire struct {
	Comment string `json:"comment"`
}

type adminWire struct {
	DecisionMemo string          `json:"decisionMemo"`
	FieldNotes   []fieldNoteWire `json:"fieldNotes"`
}

type summaryWire struct {
	SubmissionID flexID     `json:"submissionId"`
	ID           flexID     `json:"id"`
	Status       string     `json:"status"`
	SubmittedAt  string     `json:"submittedAt"`
	Admin        *adminWire `json:"admin"`
}

func (w summaryWire) toDomain() *domain.SubmissionSummary {
	s := &domain.SubmissionSummary{
		ID:          firstID(w.SubmissionID, w.ID),
		Status:      domain.SubmissionStatus(strings.ToUpper(strings.TrimSpace(w.Status))),
		SubmittedAt: w.SubmittedAt,
	}
	if w.Admin != nil {
		admin := &domain.AdminDecision{DecisionMemo: w.Admin.DecisionMemo}
		for _, n := range w.Admin.FieldNotes {
			admin.FieldNotes = append(admin.FieldNotes, domain.FieldNote{Comment: n.Comment})
		}
		s.Admin = admin
	}
	return s
}

type findingWire struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

type reviewWire struct {
	SubmissionID flexID          `json:"submissionId"`
	Status       string          `json:"status"`
	Verdict      json.RawMessage `json:"verdict"`
	Reason       *string         `json:"reason"`
	Findings     []findingWire   `json:"findings"`
	DebugTexts   []*string       `json:"debugTexts"`
}

func (w reviewWire) toDomain() *domain.ReviewResult {
	r := &domain.ReviewResult{
		SubmissionID: string(w.SubmissionID),
		Status:       domain.SubmissionStatus(w.Status),
	}
	var verdict string
	if json.Unmarshal(w.Verdict, &verdict) == nil {
		r.Verdict = verdict
	}
	if w.Reason != nil {
		r.Reason = *w.Reason
	}
	for _, f := range w.Findings {
		r.Findings = append(r.Findings, domain.Finding{Label: f.Label, Message: f.Message})
	}
	for _, t := range w.DebugTexts {
		if t != nil {
			r.DebugTexts = append(r.DebugTexts, *t)
		}
	}
	return r
}

type rowWire struct {
	SubmissionID flexID `json:"submissionId"`
	Status       string `json:"status"`
	SubmittedAt  string `json:"submittedAt"`
	Title        string `json:"title"`
	Filename     string `json:"filename"`
}

func (w rowWire) toDomain() domain.SubmissionRow {
	return domain.SubmissionRow{
		ID:          string(w.SubmissionID),
		Status:      domain.SubmissionStatus(w.Status),
		Title:       firstString(w.Title, w.Filename),
		SubmittedAt: w.SubmittedAt,
	}
}

type memberWire struct {
	MemberID       flexID `json:"memberId"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Department     string `json:"department"`
	AcademicStatus string `json:"academicStatus"`
}

func (w memberWire) toDomain() *domain.Member {
	return &domain.Member{
		MemberID:       string(w.MemberID),
		Name:           w.Name,
		Role:           domain.ParseRole(strings.TrimPrefix(strings.ToUpper(w.Role), "ROLE_")),
		Department:     w.Department,
		AcademicStatus: w.AcademicStatus,
	}
}
