package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/packs/internal/csrf"
	"github.com/DukeRupert/packs/internal/metastore"
	"github.com/DukeRupert/packs/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type levelByUser map[int64]int64

func (m levelByUser) ActiveLevel(_ context.Context, userID int64) (int64, bool, error) {
	level, ok := m[userID]
	return level, ok, nil
}

func newTestApp() *app {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	nonces := csrf.NewNonces([]byte("packsctl-test-secret"), time.Hour)
	quota := service.NewQuotaService(metastore.NewMemoryStore(), levelByUser{7: 3}, nonces, logger)
	return &app{
		quota:  quota,
		reset:  service.NewResetService(quota, logger),
		nonces: nonces,
	}
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(context.Context, string) (*app, error) { return a, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAllowanceSetAndGet(t *testing.T) {
	a := newTestApp()

	out, err := execute(t, a, "allowance", "set", "--", "3", "-5")
	require.NoError(t, err)
	assert.Equal(t, "level 3: 5 downloads per period\n", out)

	out, err = execute(t, a, "allowance", "get", "3")
	require.NoError(t, err)
	assert.Equal(t, "level 3: 5 downloads per period\n", out)

	out, err = execute(t, a, "allowance", "set", "3", "0")
	require.NoError(t, err)
	assert.Equal(t, "level 3: 0 downloads per period\n", out)
}

func TestUsageAndReset(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()

	_, err := execute(t, a, "allowance", "set", "3", "2")
	require.NoError(t, err)
	_, err = a.quota.IncrementConsumed(ctx, 7)
	require.NoError(t, err)
	_, err = a.quota.IncrementConsumed(ctx, 7)
	require.NoError(t, err)

	out, err := execute(t, a, "usage", "7")
	require.NoError(t, err)
	assert.Regexp(t, `used\s+2`, out)
	assert.Regexp(t, `remaining\s+0`, out)
	assert.Regexp(t, `at limit\s+true`, out)

	out, err = execute(t, a, "reset", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "reset for user 7")

	consumed, err := a.quota.GetConsumed(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, consumed)
}

func TestUsage_NoSubscription(t *testing.T) {
	out, err := execute(t, newTestApp(), "usage", "99")
	require.NoError(t, err)
	assert.Regexp(t, `level\s+none`, out)
	assert.Regexp(t, `at limit\s+false`, out)
}

func TestInvalidIDs(t *testing.T) {
	a := newTestApp()
	for _, args := range [][]string{
		{"allowance", "get", "abc"},
		{"allowance", "set", "0", "5"},
		{"allowance", "set", "3", "many"},
		{"usage", "-1"},
		{"reset", "x"},
	} {
		_, err := execute(t, a, args...)
		assert.Error(t, err, "%v", args)
	}
}
