package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"uistudio/internal/generator"
	"uistudio/internal/model"
	"uistudio/internal/repository"
)

type ExchangePublisher interface {
	Publish(ctx context.Context, record model.ExchangeRecord) error
}

type GenerationService struct {
	sessionRepo *repository.SessionRepository
	generator   generator.Generator
	publisher   ExchangePublisher
	cache       SessionCache
	log         *zap.Logger
}

type GenerateInput struct {
	UserID         uint
	SessionID      uint
	Prompt         string
	RecordExchange bool
}

type GenerateResult struct {
	GeneratedCode model.GeneratedCode `json:"generatedCode"`
	Message       string              `json:"message"`
	Record        *model.ChatMessage  `json:"record,omitempty"`
}

func NewGenerationService(
	sessionRepo *repository.SessionRepository,
	gen generator.Generator,
	publisher ExchangePublisher,
	cache SessionCache,
	log *zap.Logger,
) *GenerationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerationService{
		sessionRepo: sessionRepo,
		generator:   gen,
		publisher:   publisher,
		cache:       cache,
		log:         log,
	}
}

// Generate produces a new artifact for an owned, active session and stores it
// as the session's current code. With RecordExchange the assistant reply is
// queued for append to the chat history and returned so the caller can
// reuse its id instead of writing a second copy.
func (s *GenerationService) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	if input.UserID == 0 || input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, ErrPromptEmpty
	}

	session, err := s.sessionRepo.GetActive(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	code, err := s.generator.Generate(ctx, generator.Request{
		Prompt:        prompt,
		ComponentName: session.GeneratedCode.ComponentName,
	})
	if err != nil {
		s.log.Error("generate component failed",
			zap.Uint("session_id", input.SessionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	code.LastUpdated = time.Now()

	updated, err := s.sessionRepo.Update(ctx, input.SessionID, input.UserID, model.SessionPatch{GeneratedCode: &code})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrSessionNotFound
	}

	result := &GenerateResult{
		GeneratedCode: updated.GeneratedCode,
		Message:       "Component generated successfully",
	}

	if input.RecordExchange {
		if s.publisher == nil {
			return nil, ErrRecordEnqueue
		}
		msg := model.NewChatMessage(model.RoleAssistant, ExchangeSummary(prompt))
		if s.cache != nil {
			_ = s.cache.MarkDirty(ctx, input.SessionID)
		}
		if err := s.publisher.Publish(ctx, model.ExchangeRecord{
			SessionID: input.SessionID,
			UserID:    input.UserID,
			Prompt:    prompt,
			Message:   msg,
		}); err != nil {
			s.log.Error("publish exchange record failed",
				zap.Uint("session_id", input.SessionID),
				zap.Error(err),
			)
			return nil, ErrRecordEnqueue
		}
		result.Record = &msg
	}

	if s.cache != nil {
		_ = s.cache.DeleteSession(ctx, input.UserID, input.SessionID)
	}
	return result, nil
}

func ExchangeSummary(prompt string) string {
	return fmt.Sprintf("I've generated a component based on your request: %q", prompt)
}
