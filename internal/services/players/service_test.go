package players

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/storage/memory"
	"github.com/mcoot/playerrelay/internal/testutil"
)

func mustPlayer(t *testing.T, raw string) *model.Player {
	t.Helper()
	p, err := model.ParsePlayer([]byte(raw))
	require.NoError(t, err)
	return p
}

func snapshotIDs(t *testing.T, svc *Service) []model.PlayerID {
	t.Helper()
	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	ids := make([]model.PlayerID, len(snapshot))
	for i, p := range snapshot {
		ids[i] = p.ID
	}
	return ids
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    DuplicatePolicy
		wantErr bool
	}{
		{"", PolicyAppend, false},
		{"append", PolicyAppend, false},
		{"replace", PolicyReplace, false},
		{"reject", PolicyReject, false},
		{"ignore", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuplicatePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegister_AppendKeepsEveryRegistration(t *testing.T) {
	svc := New(memory.New(), PolicyAppend, testutil.NopLogger())
	ctx := context.Background()

	const n = 10
	want := make([]model.PlayerID, 0, n+1)
	for i := 0; i < n; i++ {
		p := mustPlayer(t, fmt.Sprintf(`{"id":"p%d"}`, i))
		require.NoError(t, svc.Register(ctx, p))
		want = append(want, p.ID)
	}
	require.NoError(t, svc.Register(ctx, mustPlayer(t, `{"id":"p0"}`)))
	want = append(want, "p0")

	assert.Equal(t, want, snapshotIDs(t, svc))
	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n+1, count)
}

func TestRegister_ReplaceKeepsPosition(t *testing.T) {
	svc := New(memory.New(), PolicyReplace, testutil.NopLogger())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, mustPlayer(t, `{"id":"p1"}`)))
	require.NoError(t, svc.Register(ctx, mustPlayer(t, `{"id":"p2"}`)))
	require.NoError(t, svc.Register(ctx, mustPlayer(t, `{"id":"p1","ready":true}`)))

	assert.Equal(t, []model.PlayerID{"p1", "p2"}, snapshotIDs(t, svc))
	got, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","ready":true}`, string(got.Data))
}

func TestRegister_RejectDuplicate(t *testing.T) {
	svc := New(memory.New(), PolicyReject, testutil.NopLogger())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, mustPlayer(t, `{"id":"p1"}`)))
	err := svc.Register(ctx, mustPlayer(t, `{"id":"p1"}`))
	assert.ErrorIs(t, err, model.ErrDuplicatePlayer)
	assert.Equal(t, []model.PlayerID{"p1"}, snapshotIDs(t, svc))
}

func TestNew_DefaultsToAppend(t *testing.T) {
	svc := New(memory.New(), "", testutil.NopLogger())
	assert.Equal(t, PolicyAppend, svc.Policy())
}

func TestRegister_RejectTreatsEqualNumbersAsOneID(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), PolicyReject, testutil.NopLogger())

	require.NoError(t, svc.Register(ctx, mustPlayer(t, `{"id":1}`)))
	for _, raw := range []string{`{"id":1.0}`, `{"id":1e0}`, `{"id":"1"}`} {
		err := svc.Register(ctx, mustPlayer(t, raw))
		assert.ErrorIs(t, err, model.ErrDuplicatePlayer, raw)
	}
	assert.Equal(t, []model.PlayerID{"1"}, snapshotIDs(t, svc))
}
