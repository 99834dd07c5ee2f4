package repository

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "permctl/internal/db"
	"permctl/internal/domain"
)

func setupRepos(t *testing.T) (*PermissionRepo, *AuditRepo) {
	t.Helper()
	writeDB, readDB := internaldb.OpenTestLedger(t)
	return NewPermissionRepo(writeDB, readDB), NewAuditRepo(writeDB, readDB)
}

func TestPermissionRepo_GrantAndCheckActive(t *testing.T) {
	repo, _ := setupRepos(t)
	ctx := context.Background()

	g, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "alice", g.Username)
	assert.Equal(t, "/usr/bin/docker", g.Command)
	assert.Equal(t, "admin", g.GrantedBy)
	assert.False(t, g.Revoked)

	active, err := repo.CheckActive(ctx, "alice", "/usr/bin/docker")
	require.NoError(t, err)
	assert.True(t, active)

	// Different pair is not active.
	active, err = repo.CheckActive(ctx, "alice", "/usr/bin/systemctl")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestPermissionRepo_GrantWritesAuditEntry(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)

	entries, err := audit.List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionGrant, entries[0].Action)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "/usr/bin/docker", entries[0].Command)
	require.NotNil(t, entries[0].Details)
	assert.Contains(t, *entries[0].Details, "granted by admin")
}

func TestPermissionRepo_GrantSupersedesActiveGrant(t *testing.T) {
	repo, _ := setupRepos(t)
	ctx := context.Background()

	first, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)

	second, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(2*time.Hour), "root", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Exactly one active entry for the pair.
	active, err := repo.ListActiveForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	// The superseded row survives in the full history with attribution.
	all, err := repo.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 2)
	var old *domain.PermissionGrant
	for i := range all {
		if all[i].ID == first.ID {
			old = &all[i]
		}
	}
	require.NotNil(t, old)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.RevokedBy)
	assert.Equal(t, "root", *old.RevokedBy)
}

func TestPermissionRepo_RevokeActiveGrant(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)

	ok, err := repo.Revoke(ctx, "alice", "/usr/bin/docker", "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := repo.CheckActive(ctx, "alice", "/usr/bin/docker")
	require.NoError(t, err)
	assert.False(t, active)

	action := domain.ActionRevoke
	entries, err := audit.List(ctx, domain.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Details)
	assert.Contains(t, *entries[0].Details, "revoked by admin")
}

func TestPermissionRepo_RevokeWithoutActiveGrant(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	ok, err := repo.Revoke(ctx, "alice", "/usr/bin/docker", "admin")
	require.NoError(t, err)
	assert.False(t, ok)

	// No audit write when nothing was revoked.
	entries, err := audit.List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPermissionRepo_RecordUsage(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)

	require.NoError(t, repo.RecordUsage(ctx, "alice", "/usr/bin/docker"))

	grants, err := repo.ListActiveForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.NotNil(t, grants[0].LastUsed)
	assert.WithinDuration(t, time.Now(), *grants[0].LastUsed, 5*time.Second)

	action := domain.ActionUse
	entries, err := audit.List(ctx, domain.AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPermissionRepo_RecordUsageWithoutActiveGrant(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	// No grant exists: last_used has nothing to update, but the attempt
	// still lands in the audit trail.
	require.NoError(t, repo.RecordUsage(ctx, "mallory", "/usr/bin/docker"))

	action := domain.ActionUse
	entries, err := audit.List(ctx, domain.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Details)
	assert.Equal(t, "no active grant", *entries[0].Details)
}

func TestPermissionRepo_ListActiveForUser_Ordering(t *testing.T) {
	repo, _ := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)
	_, err = repo.Grant(ctx, "alice", "/usr/bin/systemctl", time.Now().Add(3*time.Hour), "admin", 0)
	require.NoError(t, err)

	grants, err := repo.ListActiveForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	// Expiry descending: the grant expiring soonest comes last.
	assert.Equal(t, "/usr/bin/systemctl", grants[0].Command)
	assert.Equal(t, "/usr/bin/docker", grants[1].Command)
}

func TestPermissionRepo_ListAllActive_Ordering(t *testing.T) {
	repo, _ := setupRepos(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	for _, pair := range [][2]string{
		{"bob", "/usr/bin/systemctl"},
		{"alice", "/usr/bin/systemctl"},
		{"alice", "/usr/bin/docker"},
	} {
		_, err := repo.Grant(ctx, pair[0], pair[1], expires, "admin", 0)
		require.NoError(t, err)
	}

	grants, err := repo.ListAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 3)
	assert.Equal(t, "alice", grants[0].Username)
	assert.Equal(t, "/usr/bin/docker", grants[0].Command)
	assert.Equal(t, "alice", grants[1].Username)
	assert.Equal(t, "/usr/bin/systemctl", grants[1].Command)
	assert.Equal(t, "bob", grants[2].Username)
}

func TestPermissionRepo_GrantDistinctUserCap(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", expires, "admin", 2)
	require.NoError(t, err)
	_, err = repo.Grant(ctx, "bob", "/usr/bin/docker", expires, "admin", 2)
	require.NoError(t, err)

	// Third distinct user is rejected inside the transaction: no row,
	// no audit entry.
	_, err = repo.Grant(ctx, "carol", "/usr/bin/docker", expires, "admin", 2)
	var limit *domain.ConcurrencyLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 2, limit.Limit)

	grants, err := repo.ListForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, grants)

	user := "carol"
	entries, err := audit.List(ctx, domain.AuditFilter{Username: &user})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// An existing holder re-grants at the cap: superseding does not
	// raise the distinct-user count.
	_, err = repo.Grant(ctx, "alice", "/usr/bin/docker", expires.Add(time.Hour), "admin", 2)
	require.NoError(t, err)

	// Other commands have their own count.
	_, err = repo.Grant(ctx, "carol", "/usr/bin/systemctl", expires, "admin", 2)
	assert.NoError(t, err)
}

func TestPermissionRepo_GrantCapIgnoresExpiredHolders(t *testing.T) {
	repo, _ := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(-time.Minute), "admin", 1)
	require.NoError(t, err)

	// Alice's grant has expired; the slot is free for bob.
	_, err = repo.Grant(ctx, "bob", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 1)
	require.NoError(t, err)
}

func TestPermissionRepo_SweepExpired(t *testing.T) {
	repo, audit := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(-time.Minute), "admin", 0)
	require.NoError(t, err)
	_, err = repo.Grant(ctx, "bob", "/usr/bin/docker", time.Now().Add(time.Hour), "admin", 0)
	require.NoError(t, err)

	count, err := repo.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The expired grant is revoked by the system actor and gone from the
	// active snapshot; bob's grant is untouched.
	all, err := repo.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Revoked)
	require.NotNil(t, all[0].RevokedBy)
	assert.Equal(t, domain.SystemActor, *all[0].RevokedBy)

	active, err := repo.ListAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].Username)

	action := domain.ActionRevoke
	entries, err := audit.List(ctx, domain.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Details)
	assert.Contains(t, *entries[0].Details, domain.SystemActor)
}

func TestPermissionRepo_SweepExpired_Empty(t *testing.T) {
	repo, _ := setupRepos(t)

	count, err := repo.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPermissionRepo_ExpiredGrantNotActive(t *testing.T) {
	repo, _ := setupRepos(t)
	ctx := context.Background()

	_, err := repo.Grant(ctx, "alice", "/usr/bin/docker", time.Now().Add(-time.Second), "admin", 0)
	require.NoError(t, err)

	active, err := repo.CheckActive(ctx, "alice", "/usr/bin/docker")
	require.NoError(t, err)
	assert.False(t, active)

	grants, err := repo.ListAllActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, grants)
}
