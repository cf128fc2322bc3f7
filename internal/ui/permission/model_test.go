package permission

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rihigo/notify/internal/push"
)

func TestEscapeLeavesDecisionOpen(t *testing.T) {
	m := New(80)
	m.Ask()
	assert.Contains(t, m.View(), "Allow notifications?")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, AnswerMsg{Permission: push.PermissionDefault}, cmd())
	assert.Empty(t, m.View())
}

func TestUpdateWithoutQuestionIsNoop(t *testing.T) {
	m := New(80)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}
