// Package db provides SQLite connectivity helpers and migration support
// for the permission ledger.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// DSN parameters for the ledger. WAL keeps readers off the writer's
// lock; busy_timeout bounds how long a blocked writer waits before the
// engine returns SQLITE_BUSY instead of hanging.
const (
	defaultBusyTimeout = "5000" // milliseconds
	defaultSynchronous = "FULL"
	defaultJournalMode = "WAL"
)

// OpenLedger opens a *sql.DB pool for the ledger file at path.
//
// mode controls write-safety and pool sizing:
//   - "write": MaxOpenConns=1, includes _txlock=immediate so write
//     transactions take the lock up front instead of failing mid-flight
//   - "read":  MaxOpenConns=maxOpen (0 for default of 4), no _txlock
//
// Both modes set WAL journal, busy_timeout, synchronous=FULL, and
// foreign_keys=on. synchronous stays FULL here: losing a committed
// revocation to a power cut is a security defect, not an inconvenience.
func OpenLedger(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != "read" && mode != "write" {
		return nil, fmt.Errorf("invalid ledger mode %q: must be \"read\" or \"write\"", mode)
	}

	conn, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open ledger (%s): %w", mode, err)
	}

	switch mode {
	case "write":
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	case "read":
		if maxOpen <= 0 {
			maxOpen = 4
		}
		conn.SetMaxOpenConns(maxOpen)
		conn.SetMaxIdleConns(maxOpen)
	}
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping ledger (%s): %w", mode, err)
	}

	return conn, nil
}

// OpenLedgerPair opens both a write pool (MaxOpenConns=1) and a read
// pool for the same ledger file. Mutations go through the write pool;
// snapshot reads for listing and the sudoers renderer use the read pool
// so they never queue behind a writer.
func OpenLedgerPair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenLedger(path, "write", 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenLedger(path, "read", readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == "write" {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}
