package netpoll

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRegistryReadReadiness(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	rf, wf, err := os.Pipe()
	require.NoError(t, err)
	defer rf.Close()
	defer wf.Close()

	require.NoError(t, r.Add(int(rf.Fd()), true, false))

	_, err = wf.Write([]byte("x"))
	require.NoError(t, err)

	buf := make([]unix.EpollEvent, 8)
	events, err := r.Wait(buf, 1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int32(rf.Fd()), events[0].Fd)
	require.True(t, events[0].Readable)
}

func TestRegistryTimeout(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	rf, wf, err := os.Pipe()
	require.NoError(t, err)
	defer rf.Close()
	defer wf.Close()
	require.NoError(t, r.Add(int(rf.Fd()), true, false))

	start := time.Now()
	buf := make([]unix.EpollEvent, 8)
	events, err := r.Wait(buf, 50)
	require.NoError(t, err)
	require.Empty(t, events)
	require.True(t, time.Since(start) < time.Second)
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()

	rf, wf, err := os.Pipe()
	require.NoError(t, err)
	defer rf.Close()
	defer wf.Close()

	require.NoError(t, r.Add(int(rf.Fd()), true, false))
	require.NoError(t, r.Add(int(rf.Fd()), true, true))
}

func TestRegistryRemoveUnregisteredIsNotError(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Remove(999999))
}

func TestMaxClientsFloor(t *testing.T) {
	n, err := MaxClients(0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
}
