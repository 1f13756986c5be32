package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"uistudio/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	session.Normalize()
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// ListActiveByUserID returns the owner's active sessions, newest-updated first.
func (r *SessionRepository) ListActiveByUserID(ctx context.Context, userID uint) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	for i := range sessions {
		sessions[i].Normalize()
	}
	return sessions, nil
}

// GetActive returns nil without error when the session is absent, inactive,
// or owned by someone else.
func (r *SessionRepository) GetActive(ctx context.Context, sessionID, userID uint) (*model.Session, error) {
	session, err := findActive(r.db.WithContext(ctx), sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return session, nil
}

// Update applies the patch inside a locked read-modify-write and returns the
// stored record. An incoming chat history is merged with the stored one by
// message id, so messages recorded server-side are never overwritten.
// Returns nil without error when the session is not visible.
func (r *SessionRepository) Update(ctx context.Context, sessionID, userID uint, patch model.SessionPatch) (*model.Session, error) {
	return r.mutate(ctx, sessionID, userID, func(session *model.Session) bool {
		if patch.ChatHistory != nil {
			patch.ChatHistory = model.MergeChatHistory(session.ChatHistory, patch.ChatHistory)
		}
		patch.Apply(session)
		return true
	})
}

// AppendMessage appends msg unless a message with the same id is already
// recorded. The returned flag reports whether a write happened.
func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID, userID uint, msg model.ChatMessage) (*model.Session, bool, error) {
	appended := false
	session, err := r.mutate(ctx, sessionID, userID, func(session *model.Session) bool {
		if session.HasMessage(msg.ID) {
			return false
		}
		session.ChatHistory = append(session.ChatHistory, msg)
		appended = true
		return true
	})
	return session, appended, err
}

// SoftDelete marks the session inactive. The row is kept.
func (r *SessionRepository) SoftDelete(ctx context.Context, sessionID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, fmt.Errorf("delete session failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *SessionRepository) mutate(ctx context.Context, sessionID, userID uint, fn func(*model.Session) bool) (*model.Session, error) {
	var out *model.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := findActive(tx.Clauses(clause.Locking{Strength: "UPDATE"}), sessionID, userID)
		if err != nil || session == nil {
			return err
		}
		if fn(session) {
			if err := tx.Save(session).Error; err != nil {
				return err
			}
		}
		session.Normalize()
		out = session
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update session failed: %w", err)
	}
	return out, nil
}

func findActive(db *gorm.DB, sessionID, userID uint) (*model.Session, error) {
	var session model.Session
	if err := db.Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	session.Normalize()
	return &session, nil
}
