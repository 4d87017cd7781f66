package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerrelay/internal/factory"
	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/services/players"
	"github.com/mcoot/playerrelay/internal/storage/memory"
)

func startRelay(t *testing.T, cfg factory.Config) (*factory.TestApp, *httptest.Server) {
	t.Helper()
	app := factory.NewTestAppWith(memory.New(), cfg)
	server := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		_ = app.Close()
		server.Close()
	})
	return app, server
}

func runCLI(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", serverURL, "--timeout", "2s"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Health(t *testing.T) {
	_, server := startRelay(t, factory.Config{})

	out, err := runCLI(t, server.URL, "health")
	require.NoError(t, err)
	assert.Equal(t, "Status: ok\n", out)

	out, err = runCLI(t, server.URL, "--output", "json", "health")
	require.NoError(t, err)
	var result HealthResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "ok", result.Status)
}

func TestCLI_RegisterOverWebSocket(t *testing.T) {
	app, server := startRelay(t, factory.Config{})

	out, err := runCLI(t, server.URL, "-o", "json", "register", "p1", "--data", `{"name":"Ada"}`)
	require.NoError(t, err, out)
	assert.JSONEq(t, `[{"id":"p1","name":"Ada"}]`, out)

	count, err := app.Players.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCLI_RegisterOverHTTP(t *testing.T) {
	_, server := startRelay(t, factory.Config{})

	_, err := runCLI(t, server.URL, "register", "p1", "--http")
	require.NoError(t, err)

	out, err := runCLI(t, server.URL, "register", "p2", "--http", "--data", `{"team":"red"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Players (2):")
	assert.Contains(t, out, `2. p2 {"id":"p2","team":"red"}`)
}

func TestCLI_RegisterRejectedDuplicate(t *testing.T) {
	_, server := startRelay(t, factory.Config{DuplicatePolicy: players.PolicyReject})

	_, err := runCLI(t, server.URL, "register", "p1")
	require.NoError(t, err)

	_, err = runCLI(t, server.URL, "register", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUPLICATE_PLAYER")

	_, err = runCLI(t, server.URL, "register", "p1", "--http")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUPLICATE_PLAYER")
}

func TestCLI_PlayersListAndGet(t *testing.T) {
	_, server := startRelay(t, factory.Config{})

	out, err := runCLI(t, server.URL, "-o", "json", "players", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	for _, id := range []string{"a", "b"} {
		_, err := runCLI(t, server.URL, "register", id, "--http")
		require.NoError(t, err)
	}

	out, err = runCLI(t, server.URL, "players", "list")
	require.NoError(t, err)
	assert.Equal(t, "Players (2):\n  1. a {\"id\":\"a\"}\n  2. b {\"id\":\"b\"}\n", out)

	out, err = runCLI(t, server.URL, "-o", "json", "players", "get", "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b"}`, out)

	_, err = runCLI(t, server.URL, "players", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLAYER_NOT_FOUND")
}

func TestCLI_Stats(t *testing.T) {
	_, server := startRelay(t, factory.Config{})

	_, err := runCLI(t, server.URL, "register", "p1", "--http")
	require.NoError(t, err)

	out, err := runCLI(t, server.URL, "stats")
	require.NoError(t, err)
	assert.Equal(t, "Players: 1\nConnections: 0\n", out)
}

func TestCLI_WatchPrintsBroadcasts(t *testing.T) {
	app, server := startRelay(t, factory.Config{})

	done := make(chan struct{})
	var out string
	var watchErr error
	go func() {
		defer close(done)
		out, watchErr = runCLI(t, server.URL, "-o", "json", "watch", "--count", "2")
	}()

	require.Eventually(t, func() bool {
		return app.Registry.Count() == 1
	}, 2*time.Second, 5*time.Millisecond)

	for _, raw := range []string{`{"id":"p1"}`, `{"id":"p2"}`} {
		p, err := model.ParsePlayer([]byte(raw))
		require.NoError(t, err)
		require.NoError(t, app.Players.Register(context.Background(), p))
		_, err = app.Broadcast.BroadcastPlayers(context.Background())
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not exit after two broadcasts")
	}
	require.NoError(t, watchErr)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 2)

	var evt SSEEvent
	require.NoError(t, json.Unmarshal(lines[1], &evt))
	assert.Equal(t, "players", evt.Event)
	assert.JSONEq(t, `[{"id":"p1"},{"id":"p2"}]`, evt.Data)
}

func TestBuildRegisterFrame(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		data    string
		want    string
		wantErr bool
	}{
		{name: "id only", id: "p1", want: `{"name":"REGISTER","player":{"id":"p1"}}`},
		{name: "with data", id: "p1", data: `{"score":3}`, want: `{"name":"REGISTER","player":{"id":"p1","score":3}}`},
		{name: "id overrides data", id: "p1", data: `{"id":"other"}`, want: `{"name":"REGISTER","player":{"id":"p1"}}`},
		{name: "empty id", id: "", wantErr: true},
		{name: "data not an object", id: "p1", data: `[1]`, wantErr: true},
		{name: "data null", id: "p1", data: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildRegisterFrame(tt.id, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDecodeReply(t *testing.T) {
	list, err := decodeReply([]byte(`[{"id":"a"},{"id":7}]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.PlayerID("7"), list[1].ID)

	_, err = decodeReply([]byte(`{"name":"ERROR","error":{"code":"MALFORMED_COMMAND","message":"bad"}}`))
	require.Error(t, err)
	assert.Equal(t, "bad (MALFORMED_COMMAND)", err.Error())

	_, err = decodeReply([]byte(`not json`))
	assert.Error(t, err)
}

func TestConfig_WebSocketURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{server: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{server: "https://relay.example.com/", want: "wss://relay.example.com/ws"},
		{server: "http://host/prefix", want: "ws://host/prefix/ws"},
		{server: "ftp://host", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			c := &Config{ServerURL: tt.server}
			got, err := c.WebSocketURL("/ws")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCLI_RejectsBadGlobalFlags(t *testing.T) {
	_, server := startRelay(t, factory.Config{})

	_, err := runCLI(t, server.URL, "--output", "yaml", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	_, err = runCLI(t, server.URL, "--timeout", "0s", "health")
	require.Error(t, err)
}
