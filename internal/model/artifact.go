package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ThemeLight = "light"
	ThemeDark  = "dark"

	DefaultComponentName = "GeneratedComponent"
)

type ChatMessage struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  *ChatMetadata `json:"metadata,omitempty"`
}

type ChatMetadata struct {
	ImageURL  string `json:"imageUrl,omitempty"`
	ElementID string `json:"elementId,omitempty"`
}

// NewChatMessage stamps a fresh id and the current time.
func NewChatMessage(role, content string) ChatMessage {
	return ChatMessage{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewMessageID returns a time-ordered identifier (UUIDv7).
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (m ChatMessage) Clone() ChatMessage {
	if m.Metadata != nil {
		meta := *m.Metadata
		m.Metadata = &meta
	}
	return m
}

// GeneratedCode is one artifact. jsx and css render together, so callers
// replace the whole value instead of patching fields.
type GeneratedCode struct {
	JSX           string    `json:"jsx"`
	CSS           string    `json:"css"`
	ComponentName string    `json:"componentName"`
	Dependencies  []string  `json:"dependencies"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func DefaultGeneratedCode() GeneratedCode {
	return GeneratedCode{
		ComponentName: DefaultComponentName,
		Dependencies:  []string{},
		LastUpdated:   time.Now(),
	}
}

// IsEmpty reports whether no artifact has been generated yet.
func (c GeneratedCode) IsEmpty() bool {
	return c.JSX == "" && c.CSS == ""
}

func (c GeneratedCode) Clone() GeneratedCode {
	if c.Dependencies != nil {
		c.Dependencies = append([]string{}, c.Dependencies...)
	}
	return c
}

type UIState struct {
	SelectedElementID *string         `json:"selectedElementId,omitempty"`
	PropertyPanel     PropertyPanel   `json:"propertyPanel"`
	PreviewSettings   PreviewSettings `json:"previewSettings"`
}

type PropertyPanel struct {
	IsOpen   bool     `json:"isOpen"`
	Position Position `json:"position"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PreviewSettings struct {
	Theme      string `json:"theme"`
	Responsive bool   `json:"responsive"`
}

func DefaultUIState() UIState {
	return UIState{
		PreviewSettings: PreviewSettings{
			Theme:      ThemeLight,
			Responsive: true,
		},
	}
}

func (u UIState) Clone() UIState {
	if u.SelectedElementID != nil {
		id := *u.SelectedElementID
		u.SelectedElementID = &id
	}
	return u
}

// UIStatePatch is merged shallowly into a UIState. An empty SelectedElementID
// clears the selection.
type UIStatePatch struct {
	SelectedElementID *string          `json:"selectedElementId,omitempty"`
	PropertyPanel     *PropertyPanel   `json:"propertyPanel,omitempty"`
	PreviewSettings   *PreviewSettings `json:"previewSettings,omitempty"`
}

func (p UIStatePatch) MergeInto(u UIState) UIState {
	out := u.Clone()
	if p.SelectedElementID != nil {
		if *p.SelectedElementID == "" {
			out.SelectedElementID = nil
		} else {
			id := *p.SelectedElementID
			out.SelectedElementID = &id
		}
	}
	if p.PropertyPanel != nil {
		out.PropertyPanel = *p.PropertyPanel
	}
	if p.PreviewSettings != nil {
		out.PreviewSettings = *p.PreviewSettings
	}
	return out
}
