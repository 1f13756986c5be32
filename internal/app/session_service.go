package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"uistudio/internal/model"
	"uistudio/internal/repository"
)

type SessionService struct {
	sessionRepo *repository.SessionRepository
	cache       SessionCache
	log         *zap.Logger
}

type SessionCache interface {
	GetSession(ctx context.Context, userID, sessionID uint) (*model.Session, bool, error)
	SetSession(ctx context.Context, session *model.Session) error
	DeleteSession(ctx context.Context, userID, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	ClearDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type CreateSessionInput struct {
	UserID uint
	Name   string
}

type UpdateSessionInput struct {
	UserID    uint
	SessionID uint
	Patch     model.SessionPatch
}

func NewSessionService(sessionRepo *repository.SessionRepository, cache SessionCache, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		cache:       cache,
		log:         log,
	}
}

func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	name, err := validateSessionName(input.Name)
	if err != nil {
		return nil, err
	}

	session := model.NewSession(input.UserID, name)
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context, userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListActiveByUserID(ctx, userID)
}

func (s *SessionService) GetSession(ctx context.Context, userID, sessionID uint) (*model.Session, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetSession(ctx, userID, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	session, err := s.sessionRepo.GetActive(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if err := s.cache.SetSession(ctx, session); err != nil {
				s.log.Warn("cache session failed", zap.Uint("session_id", sessionID), zap.Error(err))
			}
		}
	}
	return session, nil
}

// UpdateSession applies the allow-listed patch and returns the full stored
// record, which is authoritative for the caller.
func (s *SessionService) UpdateSession(ctx context.Context, input UpdateSessionInput) (*model.Session, error) {
	if input.UserID == 0 || input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	patch, err := validatePatch(input.Patch)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.GetSession(ctx, input.UserID, input.SessionID)
	}

	session, err := s.sessionRepo.Update(ctx, input.SessionID, input.UserID, patch)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	s.invalidate(ctx, input.UserID, input.SessionID)
	return session, nil
}

func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	deleted, err := s.sessionRepo.SoftDelete(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	s.invalidate(ctx, userID, sessionID)
	return nil
}

// AddChatMessage records a user message server-side.
func (s *SessionService) AddChatMessage(ctx context.Context, userID, sessionID uint, content string) (*model.Session, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, _, err := s.sessionRepo.AppendMessage(ctx, sessionID, userID, model.NewChatMessage(model.RoleUser, content))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	s.invalidate(ctx, userID, sessionID)
	return session, nil
}

// RecordExchange appends a queued exchange record. Replays of the same
// message id are ignored.
func (s *SessionService) RecordExchange(ctx context.Context, record model.ExchangeRecord) error {
	if record.UserID == 0 || record.SessionID == 0 || record.Message.ID == "" {
		return ErrInvalidInput
	}
	session, appended, err := s.sessionRepo.AppendMessage(ctx, record.SessionID, record.UserID, record.Message)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if appended {
		s.invalidate(ctx, record.UserID, record.SessionID)
	}
	if s.cache != nil {
		_ = s.cache.ClearDirty(ctx, record.SessionID)
	}
	return nil
}

func (s *SessionService) invalidate(ctx context.Context, userID, sessionID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteSession(ctx, userID, sessionID); err != nil {
		s.log.Warn("invalidate session cache failed", zap.Uint("session_id", sessionID), zap.Error(err))
	}
}

func validateSessionName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	err := validation.Validate(name,
		validation.Required.Error("session name is required"),
		validation.RuneLength(1, model.MaxSessionNameLength).Error("session name must be between 1 and 100 characters"),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return name, nil
}

func validatePatch(patch model.SessionPatch) (model.SessionPatch, error) {
	if patch.Name != nil {
		name, err := validateSessionName(*patch.Name)
		if err != nil {
			return patch, err
		}
		patch.Name = &name
	}

	for i := range patch.ChatHistory {
		msg := patch.ChatHistory[i]
		if err := validation.ValidateStruct(&msg,
			validation.Field(&msg.ID, validation.Required),
			validation.Field(&msg.Role, validation.Required, validation.In(model.RoleUser, model.RoleAssistant)),
			validation.Field(&msg.Content, validation.Required),
		); err != nil {
			return patch, fmt.Errorf("%w: chatHistory[%d]: %v", ErrInvalidInput, i, err)
		}
	}

	if patch.GeneratedCode != nil {
		code := patch.GeneratedCode.Clone()
		if code.ComponentName == "" {
			code.ComponentName = model.DefaultComponentName
		}
		if code.Dependencies == nil {
			code.Dependencies = []string{}
		}
		if code.LastUpdated.IsZero() {
			code.LastUpdated = time.Now()
		}
		patch.GeneratedCode = &code
	}

	if patch.UIState != nil {
		if err := validation.Validate(patch.UIState.PreviewSettings.Theme,
			validation.In(model.ThemeLight, model.ThemeDark).Error("theme must be light or dark"),
		); err != nil {
			return patch, fmt.Errorf("%w: uiState.previewSettings.theme: %v", ErrInvalidInput, err)
		}
		if patch.UIState.PreviewSettings.Theme == "" {
			ui := patch.UIState.Clone()
			ui.PreviewSettings.Theme = model.ThemeLight
			patch.UIState = &ui
		}
	}
	return patch, nil
}
