package vhost

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ybouane/webservd/internal/wsconfig"
)

func servers() []wsconfig.ServerConfig {
	return []wsconfig.ServerConfig{
		{ListenPort: 8080, ServerNames: []string{"default.test"}},
		{ListenPort: 8080, ServerNames: []string{"Example.com", "www.example.com"}},
		{ListenPort: 9090, ServerNames: nil},
	}
}

func TestSelectByExactHost(t *testing.T) {
	sel := Build(servers())
	require.Equal(t, 1, sel.Select(8080, "example.com", 0))
	require.Equal(t, 1, sel.Select(8080, "www.example.com:8080", 0))
}

func TestSelectHostCaseInsensitive(t *testing.T) {
	sel := Build(servers())
	require.Equal(t, 1, sel.Select(8080, "EXAMPLE.COM", 0))
}

func TestSelectFallsBackToDefaultByPort(t *testing.T) {
	sel := Build(servers())
	require.Equal(t, 0, sel.Select(8080, "unknownhost.test", 2))
}

func TestSelectFallsBackToAcceptDefault(t *testing.T) {
	sel := Build(servers())
	require.Equal(t, 2, sel.Select(7070, "anything", 2))
}

func TestSelectStripsIPv6Brackets(t *testing.T) {
	servers := []wsconfig.ServerConfig{
		{ListenPort: 80, ServerNames: []string{"::1"}},
	}
	sel := Build(servers)
	require.Equal(t, 0, sel.Select(80, "[::1]:80", 0))
}

func TestSelectEmptyHostUsesDefault(t *testing.T) {
	sel := Build(servers())
	require.Equal(t, 0, sel.Select(8080, "", 0))
}
