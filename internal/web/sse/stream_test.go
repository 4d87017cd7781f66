package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerrelay/internal/dependencies/mocks"
	"github.com/mcoot/playerrelay/internal/services/registry"
	"github.com/mcoot/playerrelay/internal/testutil"
)

// readEvent reads lines up to the blank line ending one SSE message
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return strings.Join(lines, "\n")
		}
		lines = append(lines, line)
	}
}

func openStream(t *testing.T, url string) (*http.Response, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = resp.Body.Close()
	})
	return resp, cancel
}

func TestHandler_StreamsBroadcasts(t *testing.T) {
	reg := registry.New(mocks.NewMockClock(time.Now()), testutil.NopLogger())
	server := httptest.NewServer(NewHandler(reg, DefaultConfig(), testutil.NopLogger()))
	defer server.Close()

	resp, _ := openStream(t, server.URL)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	hello := readEvent(t, reader)
	assert.True(t, strings.HasPrefix(hello, "event: connected\ndata: "), hello)

	live := reg.Live()
	require.Len(t, live, 1)
	assert.Equal(t, registry.KindSSE, live[0].Kind())
	assert.Contains(t, hello, live[0].ID())

	require.NoError(t, live[0].Send(context.Background(), []byte(`[{"id":"p1"}]`)))
	assert.Equal(t, "event: players\ndata: [{\"id\":\"p1\"}]", readEvent(t, reader))
}

func TestHandler_ClientDisconnectRemovesConnection(t *testing.T) {
	reg := registry.New(mocks.NewMockClock(time.Now()), testutil.NopLogger())
	server := httptest.NewServer(NewHandler(reg, DefaultConfig(), testutil.NopLogger()))
	defer server.Close()

	resp, cancel := openStream(t, server.URL)
	readEvent(t, bufio.NewReader(resp.Body))
	require.Equal(t, 1, reg.Count())

	cancel()
	assert.Eventually(t, func() bool { return reg.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandler_RegistryRemoveEndsStream(t *testing.T) {
	reg := registry.New(mocks.NewMockClock(time.Now()), testutil.NopLogger())
	server := httptest.NewServer(NewHandler(reg, DefaultConfig(), testutil.NopLogger()))
	defer server.Close()

	resp, _ := openStream(t, server.URL)
	reader := bufio.NewReader(resp.Body)
	readEvent(t, reader)

	assert.Equal(t, 1, reg.CloseAll())

	done := make(chan error, 1)
	go func() {
		_, err := reader.ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after registry close")
	}
}

func TestHandler_Keepalive(t *testing.T) {
	reg := registry.New(mocks.NewMockClock(time.Now()), testutil.NopLogger())
	cfg := DefaultConfig()
	cfg.Keepalive = 10 * time.Millisecond
	server := httptest.NewServer(NewHandler(reg, cfg, testutil.NopLogger()))
	defer server.Close()

	resp, _ := openStream(t, server.URL)
	reader := bufio.NewReader(resp.Body)
	readEvent(t, reader)

	assert.Equal(t, ": keepalive", readEvent(t, reader))
}
