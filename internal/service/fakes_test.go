package service

import (
	"context"
	"sync"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/repository"
)

type stubDocs struct {
	mu      sync.Mutex
	session string
	status  domain.SubmissionStatus
}

func (s *stubDocs) ListDepartments(context.Context) ([]domain.Department, error) {
	return []domain.Department{{ID: "1", Name: "Registrar"}}, nil
}

func (s *stubDocs) ListDocTypes(context.Context, string) ([]domain.DocType, error) {
	return []domain.DocType{{ID: "10", Name: "Leave of absence"}}, nil
}

func (s *stubDocs) RequiredFields(context.Context, string) ([]domain.RequiredField, error) {
	return nil, nil
}

func (s *stubDocs) Deadline(context.Context, string) (*domain.DeadlineInfo, error) {
	return nil, nil
}

func (s *stubDocs) CreateSubmission(context.Context, string, string, domain.Upload) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: "900", Status: domain.SubmissionStatusBotReview}, nil
}

func (s *stubDocs) UpdateSubmission(_ context.Context, id, _ string, _ *domain.Upload) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: id}, nil
}

func (s *stubDocs) SubmitSubmission(_ context.Context, id string, _ domain.SubmitMode) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: id}, nil
}

func (s *stubDocs) SubmissionSummary(_ context.Context, id string) (*domain.SubmissionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.SubmissionSummary{ID: id, Status: s.status}, nil
}

func (s *stubDocs) ReviewResult(context.Context, string) (*domain.ReviewResult, error) {
	return &domain.ReviewResult{}, nil
}

func (s *stubDocs) ListMySubmissions(context.Context, domain.SubmissionFilter) ([]domain.SubmissionRow, error) {
	return nil, nil
}

type memTranscripts struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
	owners   map[string]string
}

func newMemTranscripts() *memTranscripts {
	return &memTranscripts{messages: map[string][]domain.Message{}, owners: map[string]string{}}
}

func (m *memTranscripts) Append(_ context.Context, id string, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[id] = append(m.messages[id], msg)
	return nil
}

func (m *memTranscripts) List(_ context.Context, id string, after int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages[id] {
		if msg.Seq >= after {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memTranscripts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	delete(m.owners, id)
	return nil
}

func (m *memTranscripts) SetOwner(_ context.Context, id, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[id] = subject
	return nil
}

func (m *memTranscripts) Owner(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[id]
	if !ok {
		return "", repository.ErrTranscriptNotFound
	}
	return owner, nil
}
