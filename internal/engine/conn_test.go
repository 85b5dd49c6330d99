package engine

import "testing"

import "github.com/stretchr/testify/require"

func TestTableAddGetRemove(t *testing.T) {
	table := NewTable()
	c := &Conn{Fd: 5, State: StateReading}
	table.Add(c)

	got, ok := table.Get(5)
	require.True(t, ok)
	require.Same(t, c, got)
	require.Equal(t, 1, table.Len())

	table.Remove(5)
	_, ok = table.Get(5)
	require.False(t, ok)
	require.Equal(t, 0, table.Len())
}

func TestTableEachVisitsAllEntries(t *testing.T) {
	table := NewTable()
	table.Add(&Conn{Fd: 1})
	table.Add(&Conn{Fd: 2})
	table.Add(&Conn{Fd: 3})

	seen := map[int]bool{}
	table.Each(func(c *Conn) { seen[c.Fd] = true })
	require.Len(t, seen, 3)
}

func TestConnPendingWriteAndAppendOutput(t *testing.T) {
	c := &Conn{}
	require.False(t, c.PendingWrite())

	c.AppendOutput([]byte("hello"))
	require.True(t, c.PendingWrite())

	c.WriteOffset = 5
	require.False(t, c.PendingWrite())
}

func TestConnStateStrings(t *testing.T) {
	require.Equal(t, "READING", StateReading.String())
	require.Equal(t, "WRITING", StateWriting.String())
	require.Equal(t, "CGI_PENDING", StateCGIPending.String())
	require.Equal(t, "CLOSING", StateClosing.String())
}
