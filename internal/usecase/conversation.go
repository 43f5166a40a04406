package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"intake-agent/internal/domain"
	"intake-agent/internal/schema"
)

const (
	defaultMaxMessageLen = 2000

	questionMaxTokens = 300
	summaryMaxTokens  = 500

	escalationNeedsDiscussion = "User needs internal discussion"
	escalationUnclear         = "Requirements unclear after 2 confirmation attempts"

	replyEstimateStarting = "Perfect! I have everything I need. Let me prepare your project estimate..."
	replyNeedsDiscussion  = "No problem! Take your time to discuss with your team. When you're ready, just come back and we can finalize the details. I've saved everything we discussed."
	replySecondDisagree   = "I want to make sure I understand your needs perfectly. Let me connect you with a team member who can discuss this in detail. They'll reach out within 24 hours to clarify everything and provide an accurate estimate."
	replyEscalatedAck     = "A team member will be in touch shortly. Is there anything else I can help clarify in the meantime?"
	replyCompleteAck      = "Your estimate is ready! Is there anything else you'd like to know about the project?"

	fallbackQuestion = "What else can you tell me about your project?"
	fallbackSummary  = "Let me confirm what I've gathered. Is this accurate?"
)

// Oracle is the single capability consumed from the external language
// service. The returned text may embed a JSON object anywhere, or be
// malformed or semantically wrong; every consumer defines its own
// degrade-to-default path for that. Errors are transport failures.
type Oracle interface {
	Infer(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// SessionStore is the session state access the orchestrator depends on.
type SessionStore interface {
	Acquire(id string) func()
	Create(id string) domain.Session
	Get(id string) (domain.Session, bool)
	AddMessage(id string, msg domain.Message)
	UpdateMetadata(id string, upd domain.MetadataUpdate)
	UpdatePhase(id string, phase domain.Phase)
	IncrementConfirmationAttempts(id string) int
	List() []domain.Session
}

// Archiver persists a finished conversation durably. Archival is
// best-effort; failures never fail the user's turn.
type Archiver interface {
	ArchiveConversation(ctx context.Context, sess domain.Session) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ConversationService drives the requirements-gathering state machine. All
// phase transitions happen here and are a strict function of the current
// phase and the analyzer's verdict, never of raw message content.
type ConversationService struct {
	store      SessionStore
	oracle     Oracle
	classifier *IntentClassifier
	extractor  *RequirementsExtractor
	analyzer   *ConfirmationAnalyzer

	archive       Archiver
	log           *slog.Logger
	maxMessageLen int
}

// ConversationOption configures a ConversationService.
type ConversationOption func(*ConversationService)

// WithArchiver enables durable archival of finished conversations.
func WithArchiver(a Archiver) ConversationOption {
	return func(s *ConversationService) {
		s.archive = a
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) ConversationOption {
	return func(s *ConversationService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxMessageLength overrides the inbound message length cap.
func WithMaxMessageLength(n int) ConversationOption {
	return func(s *ConversationService) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

func NewConversationService(store SessionStore, oracle Oracle, opts ...ConversationOption) (*ConversationService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if oracle == nil {
		return nil, errors.New("usecase: oracle must not be nil")
	}
	s := &ConversationService{
		store:         store,
		oracle:        oracle,
		classifier:    NewIntentClassifier(oracle),
		extractor:     NewRequirementsExtractor(oracle),
		analyzer:      NewConfirmationAnalyzer(oracle),
		log:           slog.Default(),
		maxMessageLen: defaultMaxMessageLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ChatInput is one inbound user message. An empty or unknown session id
// starts a new conversation.
type ChatInput struct {
	SessionID string
	Message   string
	UserID    string
}

// ChatOutput is the response envelope for one turn.
type ChatOutput struct {
	SessionID        string
	Response         string
	Phase            domain.Phase
	ReadinessScore   *int
	Requirements     map[string]any
	EscalationReason string
	EstimateReady    bool
}

// turn is the working state of one inbound message. Store mutations are
// staged here and committed only after every oracle call has succeeded, so
// a transport failure leaves the session exactly as it was.
type turn struct {
	id      string
	created bool
	userID  string

	// working snapshot; Messages includes the pending user message
	sess domain.Session

	startPhase   domain.Phase
	nextPhase    domain.Phase
	meta         []domain.MetadataUpdate
	bumpAttempts bool
}

// HandleMessage processes one user message through the state machine and
// returns the next outbound reply.
func (s *ConversationService) HandleMessage(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		id = newUUID()
	}

	release := s.store.Acquire(id)
	defer release()

	t := &turn{id: id, userID: strings.TrimSpace(in.UserID)}
	if sess, ok := s.store.Get(id); ok {
		t.sess = sess
	} else {
		t.created = true
		now := time.Now().UTC()
		t.sess = domain.Session{
			ID:           id,
			Phase:        domain.PhaseGathering,
			Requirements: map[string]any{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	t.startPhase = t.sess.Phase
	t.nextPhase = t.sess.Phase

	userMsg := domain.Message{Role: domain.RoleUser, Content: message, Timestamp: time.Now().UTC()}
	t.sess.Messages = append(t.sess.Messages, userMsg)

	if t.created {
		cls, err := s.classifier.Classify(ctx, message, nil)
		if err != nil {
			return ChatOutput{}, wrapOracleErr("classification", err)
		}
		problemType := cls.PrimaryIntent
		t.sess.ProblemType = problemType
		t.meta = append(t.meta, domain.MetadataUpdate{ProblemType: &problemType})
		s.log.Info("classified intent",
			"session", id, "intent", problemType, "confidence", cls.Confidence)
	}

	out, err := s.dispatch(ctx, t, message)
	if err != nil {
		return ChatOutput{}, err
	}

	final := s.commit(t, userMsg, out.Response)
	s.maybeArchive(ctx, t, final)

	out.SessionID = id
	return out, nil
}

func (s *ConversationService) dispatch(ctx context.Context, t *turn, message string) (ChatOutput, error) {
	switch t.startPhase {
	case domain.PhaseConfirmationFirst, domain.PhaseConfirmationSecond:
		return s.handleConfirmation(ctx, t, message)
	case domain.PhaseClarifying:
		return s.handleClarifying(ctx, t)
	case domain.PhaseHumanEscalation:
		return ChatOutput{
			Response:         replyEscalatedAck,
			Phase:            domain.PhaseHumanEscalation,
			EscalationReason: t.sess.EscalationReason,
		}, nil
	case domain.PhaseComplete:
		return ChatOutput{
			Response:      replyCompleteAck,
			Phase:         domain.PhaseComplete,
			EstimateReady: true,
			Requirements:  t.sess.Requirements,
		}, nil
	default:
		return s.handleGathering(ctx, t)
	}
}

func (s *ConversationService) handleGathering(ctx context.Context, t *turn) (ChatOutput, error) {
	serviceType := t.serviceType()

	ext, err := s.extractor.Extract(ctx, serviceType, t.sess.Messages)
	if err != nil {
		return ChatOutput{}, wrapOracleErr("extraction", err)
	}
	merged := s.recordExtraction(t, ext)

	s.log.Info("gathering turn",
		"session", t.id, "readiness", ext.ReadinessScore, "missing", strings.Join(ext.MissingRequired, ","))

	if ext.CompletionReady {
		summary, err := s.generateSummary(ctx, serviceType, merged)
		if err != nil {
			return ChatOutput{}, wrapOracleErr("summary", err)
		}
		t.nextPhase = domain.PhaseConfirmationFirst
		return ChatOutput{
			Response:       summary,
			Phase:          domain.PhaseConfirmationFirst,
			ReadinessScore: intPtr(ext.ReadinessScore),
			Requirements:   merged,
		}, nil
	}

	question, err := s.generateQuestion(ctx, serviceType, t.sess.Messages, merged, ext.MissingRequired)
	if err != nil {
		return ChatOutput{}, wrapOracleErr("question", err)
	}
	return ChatOutput{
		Response:       question,
		Phase:          domain.PhaseGathering,
		ReadinessScore: intPtr(ext.ReadinessScore),
	}, nil
}

func (s *ConversationService) handleConfirmation(ctx context.Context, t *turn, message string) (ChatOutput, error) {
	verdict, err := s.analyzer.Analyze(ctx, message)
	if err != nil {
		return ChatOutput{}, wrapOracleErr("confirmation_analysis", err)
	}

	// Precedence: pure agreement, needs discussion, additions, correction.
	// The categories overlap in the raw signal, so order matters: an
	// agreeing-but-adding reply is scope expansion, not agreement.
	switch {
	case verdict.Agreed && !verdict.HasAdditions:
		t.nextPhase = domain.PhaseComplete
		return ChatOutput{
			Response:      replyEstimateStarting,
			Phase:         domain.PhaseComplete,
			EstimateReady: true,
			Requirements:  t.sess.Requirements,
		}, nil

	case verdict.NeedsDiscussion:
		t.nextPhase = domain.PhaseHumanEscalation
		t.setEscalationReason(escalationNeedsDiscussion)
		return ChatOutput{
			Response:         replyNeedsDiscussion,
			Phase:            domain.PhaseHumanEscalation,
			EscalationReason: escalationNeedsDiscussion,
		}, nil

	case verdict.HasAdditions:
		t.nextPhase = domain.PhaseGathering
		response := "Great! Let me add that to your requirements."
		if verdict.AdditionDetails != "" {
			response += " " + verdict.AdditionDetails
		}
		return ChatOutput{
			Response:       response,
			Phase:          domain.PhaseGathering,
			ReadinessScore: intPtr(t.sess.ReadinessScore),
		}, nil
	}

	if t.startPhase == domain.PhaseConfirmationFirst {
		t.nextPhase = domain.PhaseClarifying
		t.bumpAttempts = true
		response := "Got it, let me clarify."
		if verdict.ClarificationNeeded != "" {
			response += " " + verdict.ClarificationNeeded
		}
		return ChatOutput{
			Response:       response,
			Phase:          domain.PhaseClarifying,
			ReadinessScore: intPtr(t.sess.ReadinessScore),
		}, nil
	}

	// Second disagreement: never another clarification loop.
	t.nextPhase = domain.PhaseHumanEscalation
	t.bumpAttempts = true
	t.setEscalationReason(escalationUnclear)
	return ChatOutput{
		Response:         replySecondDisagree,
		Phase:            domain.PhaseHumanEscalation,
		EscalationReason: escalationUnclear,
	}, nil
}

func (s *ConversationService) handleClarifying(ctx context.Context, t *turn) (ChatOutput, error) {
	serviceType := t.serviceType()

	ext, err := s.extractor.Extract(ctx, serviceType, t.sess.Messages)
	if err != nil {
		return ChatOutput{}, wrapOracleErr("extraction", err)
	}
	merged := s.recordExtraction(t, ext)

	summary, err := s.generateSummary(ctx, serviceType, merged)
	if err != nil {
		return ChatOutput{}, wrapOracleErr("summary", err)
	}
	t.nextPhase = domain.PhaseConfirmationSecond
	return ChatOutput{
		Response:       summary,
		Phase:          domain.PhaseConfirmationSecond,
		ReadinessScore: intPtr(ext.ReadinessScore),
		Requirements:   merged,
	}, nil
}

// recordExtraction merges freshly extracted values over the captured
// requirements and stages the metadata write. The merge only carries
// non-null values, so an extraction that omits a field can never erase a
// previously captured one.
func (s *ConversationService) recordExtraction(t *turn, ext ExtractedRequirements) map[string]any {
	merged := make(map[string]any, len(t.sess.Requirements)+len(ext.Data))
	for k, v := range t.sess.Requirements {
		merged[k] = v
	}
	for k, v := range ext.Data {
		merged[k] = v
	}

	t.sess.Requirements = merged
	t.sess.ReadinessScore = ext.ReadinessScore
	score := ext.ReadinessScore
	t.meta = append(t.meta, domain.MetadataUpdate{Requirements: merged, ReadinessScore: &score})
	return merged
}

func (s *ConversationService) generateQuestion(ctx context.Context, serviceType string, messages []domain.Message, extracted map[string]any, missing []string) (string, error) {
	raw, err := s.oracle.Infer(ctx, buildQuestionPrompt(serviceType, messages, extracted, missing), questionMaxTokens)
	if err != nil {
		return "", err
	}
	if text := strings.TrimSpace(raw); text != "" {
		return text, nil
	}
	return fallbackQuestion, nil
}

func (s *ConversationService) generateSummary(ctx context.Context, serviceType string, requirements map[string]any) (string, error) {
	raw, err := s.oracle.Infer(ctx, buildSummaryPrompt(serviceType, requirements), summaryMaxTokens)
	if err != nil {
		return "", err
	}
	if text := strings.TrimSpace(raw); text != "" {
		return text, nil
	}
	return fallbackSummary, nil
}

// commit applies the staged mutations in transcript order and returns the
// final stored snapshot.
func (s *ConversationService) commit(t *turn, userMsg domain.Message, reply string) domain.Session {
	if t.created {
		s.store.Create(t.id)
		if t.userID != "" {
			userID := t.userID
			s.store.UpdateMetadata(t.id, domain.MetadataUpdate{UserID: &userID})
		}
	}
	s.store.AddMessage(t.id, userMsg)
	for _, upd := range t.meta {
		s.store.UpdateMetadata(t.id, upd)
	}
	if t.bumpAttempts {
		s.store.IncrementConfirmationAttempts(t.id)
	}
	if t.nextPhase != t.startPhase {
		s.store.UpdatePhase(t.id, t.nextPhase)
	}
	s.store.AddMessage(t.id, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	})

	final, _ := s.store.Get(t.id)
	return final
}

// maybeArchive persists the conversation when this turn moved it into a
// terminal phase. Archive errors are logged, never surfaced: the in-memory
// store remains the source of truth for the conversation itself.
func (s *ConversationService) maybeArchive(ctx context.Context, t *turn, final domain.Session) {
	if s.archive == nil || !t.nextPhase.Terminal() || t.startPhase.Terminal() {
		return
	}
	if err := s.archive.ArchiveConversation(ctx, final); err != nil {
		s.log.Error("failed to archive conversation", "session", t.id, "err", err)
	}
}

// GetSession returns the stored session, or NOT_FOUND.
func (s *ConversationService) GetSession(id string) (domain.Session, error) {
	sess, ok := s.store.Get(strings.TrimSpace(id))
	if !ok {
		return domain.Session{}, newError(ErrorNotFound, "session_not_found", nil)
	}
	return sess, nil
}

// ListSessions returns summaries of every live session, oldest first.
func (s *ConversationService) ListSessions() []domain.SessionSummary {
	sessions := s.store.List()
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, domain.SessionSummary{
			ID:           sess.ID,
			MessageCount: len(sess.Messages),
			ProblemType:  sess.ProblemType,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
		})
	}
	return out
}

func (t *turn) serviceType() string {
	if t.sess.ProblemType == "" {
		return schema.ServiceGeneral
	}
	return t.sess.ProblemType
}

func (t *turn) setEscalationReason(reason string) {
	t.sess.EscalationReason = reason
	t.meta = append(t.meta, domain.MetadataUpdate{EscalationReason: &reason})
}

func wrapOracleErr(stage string, err error) error {
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, stage+"_rate_limited", err)
	}
	return newError(ErrorUpstream, stage+"_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func intPtr(n int) *int {
	return &n
}

var newUUID = func() string {
	return uuid.NewString()
}
