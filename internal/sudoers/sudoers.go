// Package sudoers projects the ledger's active-grant snapshot into a
// sudoers.d drop-in file. The file is a derived, disposable artifact:
// every rewrite recomputes it wholesale from a fresh snapshot, never
// patching incrementally, so it can never drift from the ledger for
// longer than one rewrite.
package sudoers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/singleflight"

	"permctl/internal/domain"
)

// Header marks the target as machine-managed. It is always the first
// content in the file.
const Header = "# This file is managed by permctl. Do not edit manually.\n"

// FileMode is the permission set sudo requires for sudoers.d drop-ins.
const FileMode os.FileMode = 0o440

var _ domain.Synchronizer = (*Synchronizer)(nil)

// Synchronizer rewrites the target file from the ledger. Concurrent
// in-process callers are coalesced through singleflight; concurrent
// invocations from separate processes serialize on an advisory flock
// taken next to the target, and the snapshot is read under that lock,
// so the file always reflects the most recently completed mutation.
type Synchronizer struct {
	target string
	repo   domain.PermissionRepository
	logger *slog.Logger
	flight singleflight.Group
}

// New creates a Synchronizer for the given absolute target path.
func New(target string, repo domain.PermissionRepository, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{target: target, repo: repo, logger: logger}
}

// Target returns the absolute path of the managed file.
func (s *Synchronizer) Target() string { return s.target }

// Rewrite recomputes the entire target file from the current
// active-grant snapshot. Any failure before the final rename leaves the
// previous file untouched: a stale-but-valid policy stays in force
// rather than an absent or truncated one.
func (s *Synchronizer) Rewrite(ctx context.Context) error {
	_, err, _ := s.flight.Do("rewrite", func() (interface{}, error) {
		return nil, s.rewrite(ctx)
	})
	return err
}

func (s *Synchronizer) rewrite(ctx context.Context) error {
	unlock, err := acquireLock(s.target + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	grants, err := s.repo.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("read active snapshot: %w", err)
	}

	if err := atomicWrite(s.target, []byte(Render(grants)), FileMode); err != nil {
		return err
	}

	s.logger.Debug("sudoers file rewritten", "path", s.target, "entries", len(grants))
	return nil
}

// Render produces the full file content for an active-grant snapshot.
// Output is byte-stable for a given snapshot: the snapshot arrives
// ordered by (username, command) and one line is emitted per grant.
func Render(grants []domain.PermissionGrant) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n")
	for _, g := range grants {
		fmt.Fprintf(&b, "%s ALL=(ALL) NOPASSWD: %s\n", g.Username, g.Command)
	}
	return b.String()
}

// acquireLock takes an exclusive advisory flock on path, creating it if
// needed. The lock file lives in the same directory as the target so
// every writer, whatever process it runs in, contends on the same inode.
func acquireLock(path string) (unlock func(), err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open rewrite lock: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock rewrite lock: %w", err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}

// atomicWrite writes data to a temp file in the target's directory, sets
// the final mode and fsyncs before the file is ever visible under the
// target name, then renames it into place. The temp file must share a
// filesystem with the target for the rename to be atomic.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".permctl-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	if err := fsyncDir(dir); err != nil {
		return fmt.Errorf("fsync dir: %w", err)
	}

	success = true
	return nil
}

// fsyncDir makes the rename durable across a crash.
func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck
	return d.Sync()
}
