// Package conversation implements the guided document-submission chat:
// department and doc-type selection, the deadline gate, uploads followed by
// status polling, and the result messages shown to the student.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/poller"
)

// ErrConversationEnded is returned for input arriving after the student
// ended the conversation or it was closed.
var ErrConversationEnded = errors.New("conversation ended")

// DocServer is the slice of the document server a conversation needs.
type DocServer interface {
	ReviewSource
	ListDepartments(ctx context.Context) ([]domain.Department, error)
	ListDocTypes(ctx context.Context, departmentID string) ([]domain.DocType, error)
	RequiredFields(ctx context.Context, docTypeID string) ([]domain.RequiredField, error)
	Deadline(ctx context.Context, docTypeID string) (*domain.DeadlineInfo, error)
	CreateSubmission(ctx context.Context, docTypeID, fieldsJSON string, file domain.Upload) (*domain.SubmissionSummary, error)
	UpdateSubmission(ctx context.Context, submissionID, fieldsJSON string, file *domain.Upload) (*domain.SubmissionSummary, error)
	SubmitSubmission(ctx context.Context, submissionID string, mode domain.SubmitMode) (*domain.SubmissionSummary, error)
	SubmissionSummary(ctx context.Context, submissionID string) (*domain.SubmissionSummary, error)
	ListMySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.SubmissionRow, error)
}

// TranscriptSink mirrors transcript entries somewhere durable. Entries may
// arrive out of order; Seq gives the transcript order.
type TranscriptSink interface {
	Append(ctx context.Context, conversationID string, msg domain.Message) error
}

// Runner executes follow-up work such as status polling. The task must
// receive a context that outlives the request that triggered it.
type Runner func(ctx context.Context, task func(context.Context))

// RunInline runs tasks on the caller's goroutine.
func RunInline(ctx context.Context, task func(context.Context)) {
	task(ctx)
}

const fieldsJSONEmpty = "[]"

// Deps wires a conversation to its collaborators. Only DocServer and
// Catalog are required.
type Deps struct {
	DocServer       DocServer
	Catalog         CatalogProvider
	Publisher       events.Dispatcher
	Sink            TranscriptSink
	Runner          Runner
	Logger          *zap.Logger
	Poll            poller.Options
	Clock           poller.Clock
	Location        *time.Location
	StatusListLimit int
}

// pollContext belongs to one upload. The cancel flag is read once per poll
// cycle; lastMinute is only touched by the polling goroutine.
type pollContext struct {
	seq        int
	direct     bool
	deadline   string
	startedAt  time.Time
	cancelled  atomic.Bool
	lastMinute int
}

type resultRef struct {
	submissionID string
	status       domain.SubmissionStatus
	deadline     string
}

// Conversation is one student's chat session.
type Conversation struct {
	id        string
	owner     string
	docs      DocServer
	catalog   CatalogProvider
	publisher events.Dispatcher
	sink      TranscriptSink
	run       Runner
	logger    *zap.Logger
	pollOpts  poller.Options
	clock     poller.Clock
	loc       *time.Location
	listLimit int
	createdAt time.Time

	// inputMu serialises student actions; mu guards the fields below and is
	// never held across network calls.
	inputMu sync.Mutex
	mu      sync.Mutex

	state           State
	closed          bool
	departments     []domain.Department
	docTypes        []domain.DocType
	selectedDept    *domain.Department
	selectedDocType *domain.DocType
	deadline        *domain.DeadlineInfo
	lastResult      *resultRef
	resubmitTarget  string
	uploadSeq       int
	activePolls     map[int]*pollContext
	messages        []domain.Message
	lastActivity    time.Time
}

// New creates a conversation in the INIT state. Call Start to greet the student.
func New(id, owner string, deps Deps) *Conversation {
	clock := deps.Clock
	if clock == nil {
		clock = poller.RealClock()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := deps.Runner
	if runner == nil {
		runner = RunInline
	}
	limit := deps.StatusListLimit
	if limit <= 0 {
		limit = 10
	}
	now := clock.Now()
	return &Conversation{
		id:           id,
		owner:        owner,
		docs:         deps.DocServer,
		catalog:      deps.Catalog,
		publisher:    deps.Publisher,
		sink:         deps.Sink,
		run:          runner,
		logger:       logger.With(zap.String("conversation_id", id)),
		pollOpts:     deps.Poll,
		clock:        clock,
		loc:          loc,
		listLimit:    limit,
		createdAt:    now,
		state:        StateInit,
		activePolls:  make(map[int]*pollContext),
		lastActivity: now,
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Owner returns the subject id of the student who owns the conversation.
func (c *Conversation) Owner() string { return c.owner }

// CreatedAt returns when the conversation was created.
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// State returns the current step.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastActivity returns the time of the last transcript entry.
func (c *Conversation) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ActivePolls returns how many uploads are still waiting for a verdict.
func (c *Conversation) ActivePolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.activePolls)
}

// MessageCount returns the transcript length.
func (c *Conversation) MessageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// History returns transcript entries with Seq >= after.
func (c *Conversation) History(after int) []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if after < 0 {
		after = 0
	}
	if after >= len(c.messages) {
		return []domain.Message{}
	}
	return append([]domain.Message(nil), c.messages[after:]...)
}

// Start loads departments and greets the student. A failed load leaves a
// server error message in the transcript.
func (c *Conversation) Start(ctx context.Context) error {
	c.inputMu.Lock()
	defer c.inputMu.Unlock()
	if c.isClosed() {
		return ErrConversationEnded
	}

	c.publish(ctx, events.Event{Type: events.EventConversationStarted})
	if _, err := c.loadDepartments(ctx); err != nil {
		c.logger.Error("departments load failed", zap.Error(err))
		c.bot(domain.Message{Text: c.cat().Texts.ServerError})
		return nil
	}
	c.bot(c.greeting(c.cat().Texts.Greeting))
	return nil
}

// HandleUserInput interprets free text typed (or an option label clicked)
// by the student.
func (c *Conversation) HandleUserInput(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	followUp, err := c.withInput(func() (func(context.Context), error) {
		c.user(text)
		cmd, ok := c.resolve(text)
		if !ok {
			c.bot(c.greeting(c.cat().Texts.Unsupported))
			return nil, nil
		}
		return c.dispatch(ctx, cmd)
	})
	if err != nil || followUp == nil {
		return err
	}
	c.run(ctx, followUp)
	return nil
}

// Dispatch executes a tagged command, typically from an option button.
func (c *Conversation) Dispatch(ctx context.Context, cmd domain.Command) error {
	followUp, err := c.withInput(func() (func(context.Context), error) {
		c.echo(cmd)
		return c.dispatch(ctx, cmd)
	})
	if err != nil || followUp == nil {
		return err
	}
	c.run(ctx, followUp)
	return nil
}

// HandleFileUpload submits a file for the selected doc type, or replaces the
// file of a returned submission after FIX_AND_RESUBMIT, and then waits for
// the review verdict through the Runner.
func (c *Conversation) HandleFileUpload(ctx context.Context, file domain.Upload) error {
	followUp, err := c.withInput(func() (func(context.Context), error) {
		return c.upload(ctx, file)
	})
	if err != nil || followUp == nil {
		return err
	}
	c.run(ctx, followUp)
	return nil
}

// Close tears the conversation down. Running polls stop at their next cycle
// and no further messages are produced for them.
func (c *Conversation) Close(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, pc := range c.activePolls {
		pc.cancelled.Store(true)
	}
	c.mu.Unlock()

	c.publish(ctx, events.Event{
		Type:    events.EventConversationClosed,
		Payload: events.ConversationClosedPayload{Reason: reason},
	})
}

func (c *Conversation) withInput(fn func() (func(context.Context), error)) (func(context.Context), error) {
	c.inputMu.Lock()
	defer c.inputMu.Unlock()
	if c.isClosed() || c.State() == StateEnded {
		return nil, ErrConversationEnded
	}
	return fn()
}

func (c *Conversation) dispatch(ctx context.Context, cmd domain.Command) (func(context.Context), error) {
	switch cmd.Kind {
	case domain.CommandStartSubmission, domain.CommandBack:
		c.resetToDeptSelect(ctx)
	case domain.CommandCheckStatus:
		c.listSubmissions(ctx, cmd.Filter)
	case domain.CommandEnd:
		c.end()
	case domain.CommandSelectDept:
		c.selectDepartment(ctx, cmd.ID)
	case domain.CommandSelectDocType:
		c.selectDocType(ctx, cmd.ID)
	case domain.CommandFixAndResubmit:
		c.fixAndResubmit()
	case domain.CommandSubmitDirectly:
		return c.submitDirectly(ctx)
	default:
		c.bot(c.greeting(c.cat().Texts.Unsupported))
	}
	return nil, nil
}

// resolve maps typed text to a command. Menu labels win over department
// names, which win over doc-type names; the first match in list order wins.
func (c *Conversation) resolve(text string) (domain.Command, bool) {
	l := c.cat().Labels
	menu := []struct {
		label string
		cmd   domain.Command
	}{
		{l.SubmitDocument, domain.Command{Kind: domain.CommandStartSubmission}},
		{l.SubmitAnother, domain.Command{Kind: domain.CommandStartSubmission}},
		{l.CheckStatus, domain.Command{Kind: domain.CommandCheckStatus}},
		{l.Back, domain.Command{Kind: domain.CommandBack}},
		{l.EndChat, domain.Command{Kind: domain.CommandEnd}},
		{l.Exit, domain.Command{Kind: domain.CommandEnd}},
		{l.FixAndResubmit, domain.Command{Kind: domain.CommandFixAndResubmit}},
		{l.SubmitDirectly, domain.Command{Kind: domain.CommandSubmitDirectly}},
	}
	for _, m := range menu {
		if m.label != "" && m.label == text {
			return m.cmd, true
		}
	}

	c.mu.Lock()
	depts := c.departments
	types := c.docTypes
	c.mu.Unlock()

	for _, d := range depts {
		if d.Name == text || d.DisplayName() == text {
			return domain.Command{Kind: domain.CommandSelectDept, ID: d.ID}, true
		}
	}
	for _, t := range types {
		if t.Name == text {
			return domain.Command{Kind: domain.CommandSelectDocType, ID: t.ID}, true
		}
	}

	filters := []struct {
		label  string
		filter domain.StatusFilter
	}{
		{l.FilterAll, domain.StatusFilterAll},
		{l.FilterApproved, domain.StatusFilterApproved},
		{l.FilterRejected, domain.StatusFilterRejected},
		{l.FilterInReview, domain.StatusFilterInReview},
	}
	for _, f := range filters {
		if f.label != "" && f.label == text {
			return domain.Command{Kind: domain.CommandCheckStatus, Filter: f.filter}, true
		}
	}
	return domain.Command{}, false
}

// echo records the label of the option a command came from, so button
// clicks read like typed input in the transcript.
func (c *Conversation) echo(cmd domain.Command) {
	c.mu.Lock()
	var label string
	for i := len(c.messages) - 1; i >= 0 && label == ""; i-- {
		for _, opt := range c.messages[i].Options {
			if opt.Command == cmd {
				label = opt.Label
				break
			}
		}
	}
	c.mu.Unlock()
	if label != "" {
		c.user(label)
	}
}

func (c *Conversation) resetToDeptSelect(ctx context.Context) {
	c.mu.Lock()
	c.selectedDept = nil
	c.docTypes = nil
	c.selectedDocType = nil
	c.deadline = nil
	c.resubmitTarget = ""
	c.setStateLocked(StateDeptSelect)
	depts := c.departments
	c.mu.Unlock()

	if len(depts) == 0 {
		var err error
		if depts, err = c.loadDepartments(ctx); err != nil {
			c.logger.Error("departments load failed", zap.Error(err))
			c.bot(domain.Message{Text: c.cat().Texts.ServerError})
			return
		}
	}

	opts := make([]domain.Option, 0, len(depts))
	for _, d := range depts {
		opts = append(opts, domain.Option{
			Label:   d.DisplayName(),
			Command: domain.Command{Kind: domain.CommandSelectDept, ID: d.ID},
		})
	}
	c.bot(domain.Message{Text: c.cat().Texts.SelectDepartment, Options: opts})
}

func (c *Conversation) selectDepartment(ctx context.Context, id string) {
	c.mu.Lock()
	var dept *domain.Department
	for i := range c.departments {
		if c.departments[i].ID == id {
			d := c.departments[i]
			dept = &d
			break
		}
	}
	if dept != nil {
		c.selectedDept = dept
		c.docTypes = nil
		c.selectedDocType = nil
		c.deadline = nil
		c.resubmitTarget = ""
		c.setStateLocked(StateTypeSelect)
	}
	c.mu.Unlock()

	if dept == nil {
		c.bot(c.greeting(c.cat().Texts.Unsupported))
		return
	}

	types, err := c.docs.ListDocTypes(ctx, dept.ID)
	if err != nil {
		c.logger.Error("doc types load failed", zap.String("department_id", dept.ID), zap.Error(err))
		c.bot(domain.Message{Text: c.cat().Texts.ServerError})
		return
	}

	c.mu.Lock()
	c.docTypes = types
	c.mu.Unlock()

	opts := make([]domain.Option, 0, len(types))
	for _, t := range types {
		opts = append(opts, domain.Option{
			Label:   t.Name,
			Command: domain.Command{Kind: domain.CommandSelectDocType, ID: t.ID},
		})
	}
	c.bot(domain.Message{Text: c.cat().Texts.SelectDocType, Options: opts})
}

func (c *Conversation) selectDocType(ctx context.Context, id string) {
	c.mu.Lock()
	var docType *domain.DocType
	for i := range c.docTypes {
		if c.docTypes[i].ID == id {
			t := c.docTypes[i]
			docType = &t
			break
		}
	}
	if docType != nil {
		c.selectedDocType = docType
		c.deadline = nil
		c.resubmitTarget = ""
		c.setStateLocked(StateDeadlineCheck)
	}
	c.mu.Unlock()

	if docType == nil {
		c.bot(c.greeting(c.cat().Texts.Unsupported))
		return
	}
	log := c.logger.With(zap.String("doc_type_id", docType.ID))

	fields, err := c.docs.RequiredFields(ctx, docType.ID)
	if err != nil {
		log.Warn("required fields load failed", zap.Error(err))
		fields = nil
	}

	cat := c.cat()
	deadline, err := c.docs.Deadline(ctx, docType.ID)
	if err != nil {
		log.Warn("deadline load failed", zap.Error(err))
	} else if deadline != nil {
		c.mu.Lock()
		c.deadline = deadline
		c.mu.Unlock()
		if IsExpired(deadline.Deadline, c.now()) {
			c.bot(c.deadlineExpired(deadline.Deadline))
			return
		}
		c.bot(domain.Message{Text: fill(cat.Texts.DeadlineValid, "deadline", deadline.Deadline)})
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, fill(cat.Texts.RequiredField, "label", f.Label))
	}
	c.mu.Lock()
	c.setStateLocked(StateUploadPrompt)
	c.mu.Unlock()
	c.bot(domain.Message{
		Text:          strings.TrimRight(fill(cat.Texts.UploadPrompt, "fields", strings.Join(lines, "\n")), "\n"),
		UploadEnabled: true,
		Accept:        cat.UploadAccept,
	})
}

func (c *Conversation) end() {
	c.mu.Lock()
	c.setStateLocked(StateEnded)
	for _, pc := range c.activePolls {
		pc.cancelled.Store(true)
	}
	c.mu.Unlock()
	c.bot(domain.Message{Text: c.cat().Texts.Goodbye})
}

func (c *Conversation) loadDepartments(ctx context.Context) ([]domain.Department, error) {
	depts, err := c.docs.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.departments = depts
	c.mu.Unlock()
	return depts, nil
}

func (c *Conversation) greeting(text string) domain.Message {
	l := c.cat().Labels
	return domain.Message{
		Text: text,
		Options: []domain.Option{
			{Label: l.SubmitDocument, Command: domain.Command{Kind: domain.CommandStartSubmission}},
			{Label: l.CheckStatus, Command: domain.Command{Kind: domain.CommandCheckStatus}},
		},
	}
}

func (c *Conversation) deadlineExpired(deadline string) domain.Message {
	cat := c.cat()
	if deadline == "" {
		deadline = cat.Texts.DeadlineFallback
	}
	return domain.Message{
		Text: fill(cat.Texts.DeadlineExpired, "deadline", deadline),
		Options: []domain.Option{
			{Label: cat.Labels.SubmitAnother, Command: domain.Command{Kind: domain.CommandStartSubmission}},
			{Label: cat.Labels.EndChat, Command: domain.Command{Kind: domain.CommandEnd}},
		},
	}
}

func (c *Conversation) cat() *Catalog {
	return c.catalog.Catalog()
}

func (c *Conversation) now() time.Time {
	return c.clock.Now().In(c.loc)
}

func (c *Conversation) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conversation) setStateLocked(next State) {
	if c.state == next && next != StateUploading {
		return
	}
	if !isValidTransition(c.state, next) {
		c.logger.Debug("state change ignored", zap.String("from", string(c.state)), zap.String("to", string(next)))
		return
	}
	c.state = next
}

func (c *Conversation) user(text string) {
	c.append(domain.Message{Origin: domain.OriginUser, Text: text})
}

func (c *Conversation) bot(msg domain.Message) {
	msg.Origin = domain.OriginBot
	c.append(msg)
}

func (c *Conversation) append(msg domain.Message) {
	c.mu.Lock()
	msg.Seq = len(c.messages)
	msg.CreatedAt = c.clock.Now()
	c.messages = append(c.messages, msg)
	c.lastActivity = msg.CreatedAt
	c.mu.Unlock()

	if c.sink != nil {
		if err := c.sink.Append(context.Background(), c.id, msg); err != nil {
			c.logger.Warn("transcript mirror failed", zap.Int("seq", msg.Seq), zap.Error(err))
		}
	}
}

func (c *Conversation) publish(ctx context.Context, event events.Event) {
	if c.publisher == nil {
		return
	}
	event.ConversationID = c.id
	event.Actor = c.owner
	if event.Timestamp.IsZero() {
		event.Timestamp = c.clock.Now()
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
