package dropdown

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rihigo/notify/internal/keys"
	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/notify"
	"github.com/rihigo/notify/tests/testutil"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newPanel(t *testing.T, state notify.State) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetState(state)
	return m
}

func exec(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func TestUpdate_ActionsOnSelection(t *testing.T) {
	read := testutil.Notification("n2", model.PriorityLow, 10)
	read.MarkRead(time.Now())

	m := newPanel(t, notify.State{
		Items:       []model.Notification{testutil.Notification("n1", model.PriorityHigh, 5), read},
		UnreadCount: 1,
	})

	_, cmd := m.Update(runes("m"))
	assert.Equal(t, MarkReadMsg{ID: "n1"}, exec(t, cmd))

	_, cmd = m.Update(runes("d"))
	assert.Equal(t, DeleteMsg{ID: "n1"}, exec(t, cmd))

	_, cmd = m.Update(runes("M"))
	assert.Equal(t, MarkAllReadMsg{}, exec(t, cmd))

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	open, ok := exec(t, cmd).(OpenMsg)
	require.True(t, ok)
	assert.Equal(t, "n1", open.Notification.ID)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, CloseMsg{}, exec(t, cmd))
}

func TestUpdate_MarkReadSkipsReadItem(t *testing.T) {
	read := testutil.Notification("n1", model.PriorityNormal, 1)
	read.MarkRead(time.Now())
	m := newPanel(t, notify.State{Items: []model.Notification{read}})

	_, cmd := m.Update(runes("m"))
	assert.Nil(t, cmd)

	_, cmd = m.Update(runes("M"))
	assert.Nil(t, cmd, "nothing unread")
}

func TestUpdate_LoadMoreOnlyWhenAvailable(t *testing.T) {
	items := []model.Notification{testutil.Notification("n1", model.PriorityNormal, 1)}

	m := newPanel(t, notify.State{Items: items, HasMore: false})
	_, cmd := m.Update(runes("L"))
	assert.Nil(t, cmd)

	m = newPanel(t, notify.State{Items: items, HasMore: true, IsLoading: true})
	_, cmd = m.Update(runes("L"))
	assert.Nil(t, cmd)

	m = newPanel(t, notify.State{Items: items, HasMore: true})
	_, cmd = m.Update(runes("L"))
	assert.Equal(t, LoadMoreMsg{}, exec(t, cmd))

	// Moving down from the last row also pulls the next page.
	_, cmd = m.Update(runes("j"))
	assert.Equal(t, LoadMoreMsg{}, exec(t, cmd))
}

func TestSetState_KeepsSelection(t *testing.T) {
	a := testutil.Notification("a", model.PriorityNormal, 1)
	b := testutil.Notification("b", model.PriorityNormal, 2)
	m := newPanel(t, notify.State{Items: []model.Notification{a, b}})

	require.True(t, m.Select("b"))

	c := testutil.Notification("c", model.PriorityNormal, 0)
	m.SetState(notify.State{Items: []model.Notification{c, a, b}})

	n, ok := m.SelectedItem()
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
}

func TestSelectURL(t *testing.T) {
	a := testutil.Notification("a", model.PriorityNormal, 1)
	a.ActionURL = "/bookings/42/"
	m := newPanel(t, notify.State{Items: []model.Notification{
		testutil.Notification("z", model.PriorityNormal, 0), a,
	}})

	assert.True(t, m.SelectURL("/bookings/42"))
	n, _ := m.SelectedItem()
	assert.Equal(t, "a", n.ID)

	assert.False(t, m.SelectURL("/elsewhere"))
}

func TestView_EmptyAndLoading(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	assert.Contains(t, m.View(), "Loading")

	m.SetState(notify.State{})
	assert.Contains(t, m.View(), "caught up")

	m.SetState(notify.State{
		Items:       []model.Notification{testutil.Notification("n1", model.PriorityNormal, 1)},
		UnreadCount: 1,
		HasMore:     true,
	})
	v := m.View()
	assert.Contains(t, v, "1 unread")
	assert.Contains(t, v, "load more")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "", relativeTime(time.Time{}, now))
	assert.Equal(t, "just now", relativeTime(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-48*time.Hour), now))
	assert.Equal(t, "Dec 25", relativeTime(time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), now))
}
