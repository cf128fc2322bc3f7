package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyCoalesces(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Notify()
	b.Notify()
	b.Notify()

	assert.Len(t, ch, 1)
	<-ch
	assert.Len(t, ch, 0)
}

func TestCancelClosesChannel(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Notifying after cancel must not panic.
	b.Notify()
}

func TestCloseClosesAll(t *testing.T) {
	b := New()
	ch1, _ := b.Subscribe()
	ch2, cancel2 := b.Subscribe()

	b.Close()
	cancel2()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	assert.False(t, ok1)
	assert.False(t, ok2)
}
