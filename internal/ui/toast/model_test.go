package toast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rihigo/notify/internal/model"
)

func TestNewestSkipsUndismissible(t *testing.T) {
	m := New(80)
	_, ok := m.Newest()
	assert.False(t, ok)

	m.SetToasts([]model.Toast{
		{ID: "a", Message: "first", Dismissible: true},
		{ID: "b", Message: "second", Dismissible: false},
	})

	got, ok := m.Newest()
	assert.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestViewStacksNewestFirst(t *testing.T) {
	m := New(80)
	assert.Empty(t, m.View())
	assert.True(t, m.Empty())

	m.SetToasts([]model.Toast{
		{ID: "a", Type: model.ToastInfo, Title: "Older", Dismissible: true},
		{ID: "b", Type: model.ToastError, Title: "Newer", Message: "payment failed"},
	})

	v := m.View()
	assert.Contains(t, v, "payment failed")
	assert.Less(t, strings.Index(v, "Newer"), strings.Index(v, "Older"))
}
