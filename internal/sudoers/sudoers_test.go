package sudoers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permctl/internal/domain"
)

// snapshotRepo serves a fixed active-grant snapshot. Only ListAllActive
// is exercised by the synchronizer.
type snapshotRepo struct {
	domain.PermissionRepository

	grants []domain.PermissionGrant
	err    error
}

func (r *snapshotRepo) ListAllActive(ctx context.Context) ([]domain.PermissionGrant, error) {
	return r.grants, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRender_Empty(t *testing.T) {
	content := Render(nil)
	assert.Equal(t, Header+"\n", content)
}

func TestRender_Deterministic(t *testing.T) {
	grants := []domain.PermissionGrant{
		{Username: "alice", Command: "/usr/bin/docker"},
		{Username: "alice", Command: "/usr/bin/systemctl"},
		{Username: "bob", Command: "/usr/bin/docker"},
	}

	want := Header + "\n" +
		"alice ALL=(ALL) NOPASSWD: /usr/bin/docker\n" +
		"alice ALL=(ALL) NOPASSWD: /usr/bin/systemctl\n" +
		"bob ALL=(ALL) NOPASSWD: /usr/bin/docker\n"

	assert.Equal(t, want, Render(grants))
	// Byte-stable across calls.
	assert.Equal(t, Render(grants), Render(grants))
}

func TestSynchronizer_Rewrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "permctl")
	repo := &snapshotRepo{grants: []domain.PermissionGrant{
		{Username: "alice", Command: "/usr/bin/docker", ExpiresAt: time.Now().Add(time.Hour)},
	}}

	sync := New(target, repo, discardLogger())
	require.NoError(t, sync.Rewrite(context.Background()))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice ALL=(ALL) NOPASSWD: /usr/bin/docker")
	assert.Contains(t, string(data), "managed by permctl")

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, FileMode, info.Mode().Perm())
}

func TestSynchronizer_RewriteReplacesWholeFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "permctl")
	repo := &snapshotRepo{grants: []domain.PermissionGrant{
		{Username: "alice", Command: "/usr/bin/docker"},
		{Username: "bob", Command: "/usr/bin/systemctl"},
	}}
	sync := New(target, repo, discardLogger())
	require.NoError(t, sync.Rewrite(context.Background()))

	// Shrink the snapshot: the removed line must disappear, not linger.
	repo.grants = repo.grants[:1]
	require.NoError(t, sync.Rewrite(context.Background()))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice")
	assert.NotContains(t, string(data), "bob")
}

func TestSynchronizer_SnapshotFailureKeepsPreviousFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "permctl")
	repo := &snapshotRepo{grants: []domain.PermissionGrant{
		{Username: "alice", Command: "/usr/bin/docker"},
	}}
	sync := New(target, repo, discardLogger())
	require.NoError(t, sync.Rewrite(context.Background()))

	before, err := os.ReadFile(target)
	require.NoError(t, err)

	repo.err = errors.New("ledger unavailable")
	err = sync.Rewrite(context.Background())
	require.Error(t, err)

	after, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, before, after, "failed rewrite must leave the previous file in force")
}

func TestSynchronizer_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "permctl")
	repo := &snapshotRepo{err: errors.New("ledger unavailable")}
	sync := New(target, repo, discardLogger())

	require.Error(t, sync.Rewrite(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".permctl-", "temp file left behind: %s", e.Name())
	}
}

func TestSynchronizer_TargetDirMissing(t *testing.T) {
	target := filepath.Join(t.TempDir(), "missing", "permctl")
	sync := New(target, &snapshotRepo{}, discardLogger())

	err := sync.Rewrite(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}
