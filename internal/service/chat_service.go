package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/conversation"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/observability"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/poller"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/repository"
	apperrors "github.com/lhs544/University-administrative-AI-document-review-automation/pkg/util/errorutil"
)

// DocServerFactory binds a document server client to a student's session.
type DocServerFactory func(session string) conversation.DocServer

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	DocServers      DocServerFactory
	Catalog         conversation.CatalogProvider
	Dispatcher      events.Dispatcher
	Transcripts     repository.TranscriptRepository
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Poll            poller.Options
	Clock           poller.Clock
	Location        *time.Location
	StatusListLimit int
	IdleTTL         time.Duration
}

// ChatOwner identifies who a conversation is held for.
type ChatOwner struct {
	SubjectID string
	Upstream  string
}

// ConversationInfo summarises a live conversation for operators.
type ConversationInfo struct {
	ID           string
	Owner        string
	State        conversation.State
	Messages     int
	ActivePolls  int
	CreatedAt    time.Time
	LastActivity time.Time
}

// ChatService holds live conversations in memory and runs their status
// polls in the background.
type ChatService struct {
	deps   ChatDependencies
	logger *zap.Logger
	clock  poller.Clock

	mu       sync.RWMutex
	sessions map[string]*conversation.Conversation

	baseCtx  context.Context
	cancel   context.CancelFunc
	bgMu     sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = poller.RealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatService{
		deps:     deps,
		logger:   logger,
		clock:    clock,
		sessions: make(map[string]*conversation.Conversation),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Create starts a conversation for the owner and returns it after the greeting.
func (s *ChatService) Create(ctx context.Context, owner ChatOwner) (*conversation.Conversation, error) {
	if owner.SubjectID == "" || owner.Upstream == "" {
		return nil, apperrors.NewUnauthorized("document server session required")
	}
	if s.baseCtx.Err() != nil {
		return nil, apperrors.NewConflict("chat service is shutting down", nil)
	}

	id := uuid.NewString()
	deps := conversation.Deps{
		DocServer:       s.deps.DocServers(owner.Upstream),
		Catalog:         s.deps.Catalog,
		Publisher:       s.deps.Dispatcher,
		Runner:          s.runBackground,
		Logger:          s.logger,
		Poll:            s.deps.Poll,
		Clock:           s.clock,
		Location:        s.deps.Location,
		StatusListLimit: s.deps.StatusListLimit,
	}
	if s.deps.Transcripts != nil {
		deps.Sink = s.deps.Transcripts
		if err := s.deps.Transcripts.SetOwner(ctx, id, owner.SubjectID); err != nil {
			s.logger.Warn("transcript owner not stored", zap.String("conversation_id", id), zap.Error(err))
		}
	}
	conv := conversation.New(id, owner.SubjectID, deps)

	s.mu.Lock()
	s.sessions[id] = conv
	active := len(s.sessions)
	s.mu.Unlock()
	s.deps.Metrics.SetActiveConversations(active)

	if err := conv.Start(ctx); err != nil {
		return nil, s.mapError(err)
	}
	return conv, nil
}

// Input feeds typed text and returns the transcript entries it produced.
func (s *ChatService) Input(ctx context.Context, subjectID, id, text string) ([]domain.Message, error) {
	return s.act(subjectID, id, func(conv *conversation.Conversation) error {
		return conv.HandleUserInput(ctx, text)
	})
}

// Command executes a tagged command and returns the entries it produced.
func (s *ChatService) Command(ctx context.Context, subjectID, id string, cmd domain.Command) ([]domain.Message, error) {
	if cmd.Kind == "" {
		return nil, apperrors.NewValidationError("command kind is required", nil)
	}
	return s.act(subjectID, id, func(conv *conversation.Conversation) error {
		return conv.Dispatch(ctx, cmd)
	})
}

// Upload submits a file. The review wait continues in the background; its
// messages show up in History.
func (s *ChatService) Upload(ctx context.Context, subjectID, id string, file domain.Upload) ([]domain.Message, error) {
	if file.FileName == "" || len(file.Content) == 0 {
		return nil, apperrors.NewValidationError("file is required", nil)
	}
	return s.act(subjectID, id, func(conv *conversation.Conversation) error {
		return conv.HandleFileUpload(ctx, file)
	})
}

// History returns entries with Seq >= after. Evicted conversations are
// served from the transcript store when one is configured.
func (s *ChatService) History(ctx context.Context, subjectID, id string, after int) ([]domain.Message, error) {
	conv, err := s.lookup(subjectID, id)
	if err == nil {
		return conv.History(after), nil
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" || s.deps.Transcripts == nil {
		return nil, err
	}

	owner, ownerErr := s.deps.Transcripts.Owner(ctx, id)
	if errors.Is(ownerErr, repository.ErrTranscriptNotFound) {
		return nil, err
	}
	if ownerErr != nil {
		return nil, apperrors.NewInternalError(ownerErr)
	}
	if owner != subjectID {
		return nil, apperrors.NewForbidden("conversation belongs to another student")
	}
	return s.deps.Transcripts.List(ctx, id, after)
}

// Get returns a live conversation owned by subjectID.
func (s *ChatService) Get(subjectID, id string) (*conversation.Conversation, error) {
	return s.lookup(subjectID, id)
}

// Close ends and forgets a conversation.
func (s *ChatService) Close(ctx context.Context, subjectID, id string) error {
	conv, err := s.lookup(subjectID, id)
	if err != nil {
		return err
	}
	s.remove(ctx, conv, "closed")
	return nil
}

// Terminate closes a conversation on behalf of an operator, whoever owns it.
func (s *ChatService) Terminate(ctx context.Context, id string) error {
	s.mu.RLock()
	conv, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return apperrors.NewNotFound("conversation", map[string]any{"id": id})
	}
	s.remove(ctx, conv, "terminated")
	return nil
}

// List returns live conversations, most recently active first.
func (s *ChatService) List() []ConversationInfo {
	s.mu.RLock()
	convs := make([]*conversation.Conversation, 0, len(s.sessions))
	for _, conv := range s.sessions {
		convs = append(convs, conv)
	}
	s.mu.RUnlock()

	out := make([]ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		out = append(out, ConversationInfo{
			ID:           conv.ID(),
			Owner:        conv.Owner(),
			State:        conv.State(),
			Messages:     conv.MessageCount(),
			ActivePolls:  conv.ActivePolls(),
			CreatedAt:    conv.CreatedAt(),
			LastActivity: conv.LastActivity(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out
}

// EvictIdle closes conversations untouched for longer than the idle TTL.
// Conversations still waiting for a review verdict are kept.
func (s *ChatService) EvictIdle(ctx context.Context, now time.Time) int {
	if s.deps.IdleTTL <= 0 {
		return 0
	}
	s.mu.RLock()
	var idle []*conversation.Conversation
	for _, conv := range s.sessions {
		if conv.ActivePolls() == 0 && now.Sub(conv.LastActivity()) > s.deps.IdleTTL {
			idle = append(idle, conv)
		}
	}
	s.mu.RUnlock()

	for _, conv := range idle {
		s.remove(ctx, conv, "idle")
	}
	if len(idle) > 0 {
		s.logger.Info("evicted idle conversations", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Shutdown stops background polls and waits for them to return.
func (s *ChatService) Shutdown(ctx context.Context) error {
	s.bgMu.Lock()
	s.stopping = true
	s.cancel()
	s.bgMu.Unlock()

	s.mu.RLock()
	convs := make([]*conversation.Conversation, 0, len(s.sessions))
	for _, conv := range s.sessions {
		convs = append(convs, conv)
	}
	s.mu.RUnlock()
	for _, conv := range convs {
		s.remove(ctx, conv, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChatService) act(subjectID, id string, fn func(*conversation.Conversation) error) ([]domain.Message, error) {
	conv, err := s.lookup(subjectID, id)
	if err != nil {
		return nil, err
	}
	before := conv.MessageCount()
	if err := fn(conv); err != nil {
		return nil, s.mapError(err)
	}
	return conv.History(before), nil
}

func (s *ChatService) lookup(subjectID, id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	conv, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound("conversation", map[string]any{"id": id})
	}
	if conv.Owner() != subjectID {
		return nil, apperrors.NewForbidden("conversation belongs to another student")
	}
	return conv, nil
}

func (s *ChatService) remove(ctx context.Context, conv *conversation.Conversation, reason string) {
	s.mu.Lock()
	delete(s.sessions, conv.ID())
	active := len(s.sessions)
	s.mu.Unlock()

	conv.Close(ctx, reason)
	s.deps.Metrics.SetActiveConversations(active)
}

// runBackground detaches follow-up work from the request so polls outlive it.
// Tasks handed over once Shutdown started are dropped.
func (s *ChatService) runBackground(_ context.Context, task func(context.Context)) {
	s.bgMu.Lock()
	if s.stopping {
		s.bgMu.Unlock()
		s.logger.Warn("background task dropped during shutdown")
		return
	}
	s.wg.Add(1)
	s.bgMu.Unlock()
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background task panicked", zap.Any("panic", r))
			}
		}()
		task(s.baseCtx)
	}()
}

func (s *ChatService) mapError(err error) error {
	if errors.Is(err, conversation.ErrConversationEnded) {
		return apperrors.NewConflict("conversation has ended", nil)
	}
	return apperrors.MapError(err)
}
