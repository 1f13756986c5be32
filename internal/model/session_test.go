package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(7, "Hero")
	assert.True(t, s.IsActive)
	assert.NotNil(t, s.ChatHistory)
	assert.True(t, s.GeneratedCode.IsEmpty())
	assert.Equal(t, DefaultComponentName, s.GeneratedCode.ComponentName)
	assert.Equal(t, ThemeLight, s.UIState.PreviewSettings.Theme)
	assert.True(t, s.UIState.PreviewSettings.Responsive)
	assert.Nil(t, s.UIState.SelectedElementID)
}

func TestNormalizeFillsNilDocuments(t *testing.T) {
	var s Session
	s.Normalize()

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"chatHistory":[]`)
	assert.Contains(t, string(raw), `"dependencies":[]`)
	assert.Contains(t, string(raw), `"theme":"light"`)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession(1, "deep")
	selected := "btn"
	s.UIState.SelectedElementID = &selected
	s.GeneratedCode.Dependencies = []string{"react"}
	msg := NewChatMessage(RoleUser, "hi")
	msg.Metadata = &ChatMetadata{ElementID: "hero"}
	s.ChatHistory = append(s.ChatHistory, msg)

	c := s.Clone()
	c.ChatHistory[0].Metadata.ElementID = "changed"
	c.GeneratedCode.Dependencies[0] = "vue"
	*c.UIState.SelectedElementID = "other"

	assert.Equal(t, "hero", s.ChatHistory[0].Metadata.ElementID)
	assert.Equal(t, "react", s.GeneratedCode.Dependencies[0])
	assert.Equal(t, "btn", *s.UIState.SelectedElementID)
}

func TestPatchApplyTouchesOnlyPresentFields(t *testing.T) {
	s := NewSession(1, "before")
	s.ChatHistory = []ChatMessage{NewChatMessage(RoleUser, "keep")}

	name := "after"
	SessionPatch{Name: &name}.Apply(s)
	assert.Equal(t, "after", s.Name)
	assert.Len(t, s.ChatHistory, 1)

	assert.True(t, SessionPatch{}.IsEmpty())
	assert.False(t, SessionPatch{ChatHistory: []ChatMessage{}}.IsEmpty())

	SessionPatch{ChatHistory: []ChatMessage{}}.Apply(s)
	assert.Empty(t, s.ChatHistory)
}

func TestPatchOmitsAbsentFieldsOnTheWire(t *testing.T) {
	name := "x"
	raw, err := json.Marshal(SessionPatch{Name: &name})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x"}`, string(raw))
}

func TestUIStatePatchMerge(t *testing.T) {
	base := DefaultUIState()
	selected := "card"
	merged := UIStatePatch{SelectedElementID: &selected}.MergeInto(base)
	require.NotNil(t, merged.SelectedElementID)
	assert.Equal(t, "card", *merged.SelectedElementID)
	assert.Equal(t, base.PreviewSettings, merged.PreviewSettings)

	dark := PreviewSettings{Theme: ThemeDark}
	merged = UIStatePatch{PreviewSettings: &dark}.MergeInto(merged)
	assert.Equal(t, ThemeDark, merged.PreviewSettings.Theme)
	assert.Equal(t, "card", *merged.SelectedElementID)

	none := ""
	merged = UIStatePatch{SelectedElementID: &none}.MergeInto(merged)
	assert.Nil(t, merged.SelectedElementID)
}

func TestMessageIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewMessageID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestMergeChatHistoryKeepsStoredMessages(t *testing.T) {
	base := time.Now()
	user := ChatMessage{ID: "u1", Role: RoleUser, Content: "make a card", Timestamp: base}
	server := ChatMessage{ID: "s1", Role: RoleAssistant, Content: "recorded", Timestamp: base.Add(time.Second)}
	client := ChatMessage{ID: "c1", Role: RoleAssistant, Content: "local", Timestamp: base.Add(2 * time.Second)}

	merged := MergeChatHistory([]ChatMessage{user, server}, []ChatMessage{user, client})
	require.Len(t, merged, 3)
	assert.Equal(t, []string{"u1", "s1", "c1"}, []string{merged[0].ID, merged[1].ID, merged[2].ID})

	same := MergeChatHistory([]ChatMessage{user}, []ChatMessage{user, client, client})
	assert.Len(t, same, 2)

	assert.Empty(t, MergeChatHistory(nil, []ChatMessage{}))
	assert.NotNil(t, MergeChatHistory(nil, []ChatMessage{}))
}
