// Package wstest spins up a real Engine against loopback TCP sockets for
// end-to-end assertions: a thin wrapper that starts one server instance
// per test and exposes an *http.Client pointed at it.
package wstest

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ybouane/webservd/internal/engine"
	"github.com/ybouane/webservd/internal/wsconfig"
)

// Harness owns one running Engine for the lifetime of a test.
type Harness struct {
	t       *testing.T
	Engine  *engine.Engine
	BaseURL string
	Client  *http.Client

	done chan struct{}
}

// Start parses rawConfig, launches the engine's event loop on its own
// goroutine, and waits briefly for the listener to come up before
// returning. cfg.Servers[0].ListenPort is used to build BaseURL.
func Start(t *testing.T, rawConfig string) *Harness {
	t.Helper()

	cfg, err := wsconfig.Parse(strings.NewReader(rawConfig))
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Servers)

	eng, err := engine.New(cfg, zap.NewNop())
	require.NoError(t, err)

	h := &Harness{
		t:       t,
		Engine:  eng,
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Servers[0].ListenPort),
		Client:  &http.Client{Timeout: 5 * time.Second},
		done:    make(chan struct{}),
	}

	go func() {
		eng.Run()
		close(h.done)
	}()

	waitForListener(t, h.BaseURL)
	t.Cleanup(h.Stop)
	return h
}

// Stop requests a clean shutdown and blocks until the event loop has
// exited and released its resources.
func (h *Harness) Stop() {
	h.Engine.Stop()
	<-h.done
	h.Engine.Shutdown()
}

func waitForListener(t *testing.T, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	client := &http.Client{Timeout: 200 * time.Millisecond}
	for time.Now().Before(deadline) {
		if resp, err := client.Get(baseURL + "/"); err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server at %s never became reachable", baseURL)
}
