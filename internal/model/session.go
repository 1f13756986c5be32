package model

import (
	"sort"
	"time"
)

const MaxSessionNameLength = 100

// Session is the persisted unit of work. The embedded documents are stored as
// JSON columns and travel over the wire with the same camelCase keys.
type Session struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UserID        uint          `gorm:"not null;index:idx_sessions_user_updated,priority:1" json:"userId"`
	Name          string        `gorm:"size:100;not null" json:"name"`
	ChatHistory   []ChatMessage `gorm:"type:json;serializer:json" json:"chatHistory"`
	GeneratedCode GeneratedCode `gorm:"type:json;serializer:json" json:"generatedCode"`
	UIState       UIState       `gorm:"type:json;serializer:json" json:"uiState"`
	IsActive      bool          `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"index:idx_sessions_user_updated,priority:2" json:"updatedAt"`
}

// NewSession returns an active session carrying the documented defaults.
func NewSession(userID uint, name string) *Session {
	return &Session{
		UserID:        userID,
		Name:          name,
		ChatHistory:   []ChatMessage{},
		GeneratedCode: DefaultGeneratedCode(),
		UIState:       DefaultUIState(),
		IsActive:      true,
	}
}

// Normalize replaces nil collections decoded from storage or the wire with
// empty ones so the session always serializes with non-null documents.
func (s *Session) Normalize() {
	if s.ChatHistory == nil {
		s.ChatHistory = []ChatMessage{}
	}
	if s.GeneratedCode.Dependencies == nil {
		s.GeneratedCode.Dependencies = []string{}
	}
	if s.GeneratedCode.ComponentName == "" {
		s.GeneratedCode.ComponentName = DefaultComponentName
	}
	if s.UIState.PreviewSettings.Theme == "" {
		s.UIState.PreviewSettings.Theme = ThemeLight
	}
}

func (s Session) Clone() Session {
	out := s
	out.ChatHistory = make([]ChatMessage, len(s.ChatHistory))
	for i, msg := range s.ChatHistory {
		out.ChatHistory[i] = msg.Clone()
	}
	out.GeneratedCode = s.GeneratedCode.Clone()
	out.UIState = s.UIState.Clone()
	return out
}

func (s Session) HasMessage(id string) bool {
	for _, msg := range s.ChatHistory {
		if msg.ID == id {
			return true
		}
	}
	return false
}

// SessionPatch is the allow-listed update shape. Nil fields are left untouched.
type SessionPatch struct {
	Name          *string        `json:"name,omitempty"`
	ChatHistory   []ChatMessage  `json:"chatHistory,omitempty"`
	GeneratedCode *GeneratedCode `json:"generatedCode,omitempty"`
	UIState       *UIState       `json:"uiState,omitempty"`
}

func (p SessionPatch) IsEmpty() bool {
	return p.Name == nil && p.ChatHistory == nil && p.GeneratedCode == nil && p.UIState == nil
}

// Apply copies the present fields onto s.
func (p SessionPatch) Apply(s *Session) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.ChatHistory != nil {
		s.ChatHistory = make([]ChatMessage, len(p.ChatHistory))
		for i, msg := range p.ChatHistory {
			s.ChatHistory[i] = msg.Clone()
		}
	}
	if p.GeneratedCode != nil {
		s.GeneratedCode = p.GeneratedCode.Clone()
	}
	if p.UIState != nil {
		s.UIState = p.UIState.Clone()
	}
}

// MergeChatHistory combines a stored history with an incoming one. Chat is
// append-only, so messages missing from incoming are kept rather than
// dropped; the result is ordered by timestamp, incoming order breaking ties.
func MergeChatHistory(stored, incoming []ChatMessage) []ChatMessage {
	seen := make(map[string]struct{}, len(incoming))
	out := make([]ChatMessage, 0, len(incoming)+len(stored))
	for _, msg := range incoming {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg.Clone())
	}
	extra := false
	for _, msg := range stored {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg.Clone())
		extra = true
	}
	if extra {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.Before(out[j].Timestamp)
		})
	}
	return out
}
