package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"uistudio/internal/model"
)

// Generator is the remote generation collaborator.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	SessionID      uint   `json:"sessionId"`
	RecordExchange bool   `json:"recordExchange"`
}

type GenerateResult struct {
	GeneratedCode model.GeneratedCode `json:"generatedCode"`
	Message       string              `json:"message"`
	Record        *model.ChatMessage  `json:"record,omitempty"`
}

// RecordPolicy decides which side writes the assistant message for a
// successful generation.
type RecordPolicy int

const (
	// RecordClient: the client appends the message; the server does not.
	RecordClient RecordPolicy = iota
	// RecordServer: the server records the message and the client adopts it
	// under the same id.
	RecordServer
	// RecordBoth: both sides append independently.
	RecordBoth
)

func ParseRecordPolicy(raw string) (RecordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "client":
		return RecordClient, nil
	case "server":
		return RecordServer, nil
	case "both":
		return RecordBoth, nil
	default:
		return RecordClient, fmt.Errorf("unknown record policy %q", raw)
	}
}

func (p RecordPolicy) String() string {
	switch p {
	case RecordServer:
		return "server"
	case RecordBoth:
		return "both"
	default:
		return "client"
	}
}

const (
	DefaultSessionName = "New Session"
	apologyMessage     = "Sorry, I encountered an error while generating the component. Please try again with a different prompt."
)

type OrchestratorOptions struct {
	Policy          RecordPolicy
	DefaultName     string
	GenerateTimeout time.Duration
	Logger          *zap.Logger
}

// Orchestrator drives one generation turn: make sure a session exists, call
// the generator and fold the result into the synchronizer.
type Orchestrator struct {
	sync    *Synchronizer
	gen     Generator
	opts    OrchestratorOptions
	log     *zap.Logger
	creates singleflight.Group
}

func NewOrchestrator(sync *Synchronizer, gen Generator, opts OrchestratorOptions) *Orchestrator {
	if opts.DefaultName == "" {
		opts.DefaultName = DefaultSessionName
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 60 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		sync: sync,
		gen:  gen,
		opts: opts,
		log:  log.Named("orchestrator"),
	}
}

// Start loads the session list, then selects the newest session or creates
// a fresh one when none exist.
func (o *Orchestrator) Start(ctx context.Context) (*model.Session, error) {
	if err := o.sync.ListSessions(ctx); err != nil {
		return nil, err
	}
	sessions := o.sync.Sessions()
	if len(sessions) == 0 {
		return o.EnsureSession(ctx)
	}
	newest := sessions[0]
	for _, sess := range sessions[1:] {
		if sess.UpdatedAt.After(newest.UpdatedAt) {
			newest = sess
		}
	}
	return o.sync.SelectSession(ctx, newest.ID)
}

// EnsureSession returns the current session, creating one when there is
// none. Concurrent callers share a single creation.
func (o *Orchestrator) EnsureSession(ctx context.Context) (*model.Session, error) {
	if cur := o.sync.Current(); cur != nil {
		return cur, nil
	}
	v, err, _ := o.creates.Do("create", func() (interface{}, error) {
		if cur := o.sync.Current(); cur != nil {
			return cur, nil
		}
		return o.sync.CreateSession(ctx, o.opts.DefaultName)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Session), nil
}

// Submit records the user's prompt in the chat and runs a generation turn.
func (o *Orchestrator) Submit(ctx context.Context, prompt string, meta *model.ChatMetadata) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return NewError(ErrValidation, 0, "Prompt is required", nil)
	}
	if _, err := o.EnsureSession(ctx); err != nil {
		return err
	}
	msg := model.NewChatMessage(model.RoleUser, prompt)
	if meta != nil {
		m := *meta
		msg.Metadata = &m
	}
	o.sync.AppendChatMessage(msg)
	return o.Generate(ctx, prompt)
}

// Generate asks the generator for a new artifact for the current session.
// On success the artifact replaces the current code and one assistant
// message is appended; on failure an apology message is appended and the
// error returned.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return NewError(ErrValidation, 0, "Prompt is required", nil)
	}
	sess, err := o.EnsureSession(ctx)
	if err != nil {
		return err
	}

	genCtx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()
	result, err := o.gen.Generate(genCtx, GenerateRequest{
		Prompt:         prompt,
		SessionID:      sess.ID,
		RecordExchange: o.opts.Policy != RecordClient,
	})
	if err != nil {
		o.log.Error("generate component failed",
			zap.Uint("session_id", sess.ID),
			zap.Error(err),
		)
		o.appendIfCurrent(sess.ID, model.NewChatMessage(model.RoleAssistant, apologyMessage))
		return Classify(err)
	}

	if cur := o.sync.Current(); cur == nil || cur.ID != sess.ID {
		o.log.Info("session changed during generation; result not applied",
			zap.Uint("session_id", sess.ID),
		)
		return nil
	}

	if err := o.sync.MutateCode(result.GeneratedCode); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	o.appendIfCurrent(sess.ID, o.assistantMessage(result))
	return nil
}

func (o *Orchestrator) assistantMessage(result *GenerateResult) model.ChatMessage {
	if o.opts.Policy == RecordServer && result.Record != nil {
		return result.Record.Clone()
	}
	return model.NewChatMessage(model.RoleAssistant, Summary(result.GeneratedCode))
}

func (o *Orchestrator) appendIfCurrent(sessionID uint, msg model.ChatMessage) {
	if cur := o.sync.Current(); cur == nil || cur.ID != sessionID {
		return
	}
	o.sync.AppendChatMessage(msg)
}

// Summary is the assistant message shown for a generated artifact.
func Summary(code model.GeneratedCode) string {
	var b strings.Builder
	b.WriteString("I've generated a component based on your request. Here's the code:\n\n")
	b.WriteString("**JSX/TSX:**\n```jsx\n")
	b.WriteString(code.JSX)
	b.WriteString("\n```\n\n**CSS:**\n```css\n")
	b.WriteString(code.CSS)
	b.WriteString("\n```")
	return b.String()
}
