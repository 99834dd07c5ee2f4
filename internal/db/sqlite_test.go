package db

import (
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN_Write(t *testing.T) {
	dsn := buildDSN("/tmp/ledger.sqlite", "write")

	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_synchronous=FULL")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.True(t, strings.HasPrefix(dsn, "/tmp/ledger.sqlite?"))
}

func TestBuildDSN_Read(t *testing.T) {
	dsn := buildDSN("/tmp/ledger.sqlite", "read")

	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.NotContains(t, dsn, "_txlock")
}

func TestOpenLedger_InvalidMode(t *testing.T) {
	_, err := OpenLedger(filepath.Join(t.TempDir(), "test.db"), "invalid", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ledger mode")
}

func TestOpenLedger_Write(t *testing.T) {
	conn, err := OpenLedger(filepath.Join(t.TempDir(), "test.db"), "write", 0)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var journalMode string
	err = conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var busyTimeout int
	err = conn.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout)
	require.NoError(t, err)
	assert.Equal(t, 5000, busyTimeout)

	assert.Equal(t, 1, conn.Stats().MaxOpenConnections)
}

func TestOpenLedgerPair_Migrations(t *testing.T) {
	writeDB, readDB := OpenTestLedger(t)

	// Both pools see the migrated schema.
	var n int
	err := writeDB.QueryRow(`SELECT COUNT(*) FROM permission_grants`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	err = readDB.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
