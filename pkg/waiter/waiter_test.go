package waiter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	_ EventType = 1 << iota
	evA
	evB
)

func TestWaiter(t *testing.T) {
	var w Waiter

	c := make(chan struct{}, 1)
	ev := w.RegisterChannel(evA, c)

	var calls int
	w.RegisterFunc(evA|evB, func() { calls++ })

	w.Notify(evB)
	require.Equal(t, 1, calls)
	require.Len(t, c, 0)

	w.Notify(evA)
	w.Notify(evA)
	require.Equal(t, 3, calls)
	require.Len(t, c, 1)

	w.Unregister(ev)
	require.Equal(t, 1, w.Count())
}
