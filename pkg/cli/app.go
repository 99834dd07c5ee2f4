package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"permctl/internal/config"
	"permctl/internal/db"
	"permctl/internal/db/repository"
	"permctl/internal/domain"
	"permctl/internal/identity"
	"permctl/internal/service"
	"permctl/internal/sudoers"
)

const readPoolSize = 4

// newOracle is swapped out by tests that cannot depend on the host's
// user database.
var newOracle = func() domain.IdentityOracle {
	return identity.NewExecOracle(0)
}

// app holds the wired collaborators behind every ledger-touching command.
type app struct {
	cfg     *config.Config
	manager *service.Manager
	logger  *slog.Logger

	writeDB *sql.DB
	readDB  *sql.DB
}

// openApp loads config, opens the ledger, runs migrations, and wires
// the permission manager. Callers must Close it.
func openApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Root().PersistentFlags()
	cfgFlag, _ := flags.GetString("config")
	debug, _ := flags.GetBool("debug")

	cfg, err := config.Load(config.Path(cfgFlag))
	if err != nil {
		return nil, err
	}

	level := cfg.SlogLevel()
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	writeDB, readDB, err := db.OpenLedgerPair(cfg.DBPath, readPoolSize)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(writeDB); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}

	repo := repository.NewPermissionRepo(writeDB, readDB)
	audit := repository.NewAuditRepo(writeDB, readDB)
	policies := cfg.Policies()
	validator := service.NewValidator(policies, newOracle())
	sync := sudoers.New(cfg.SudoersPath, repo, logger)
	manager := service.NewManager(policies, validator, repo, audit, sync, logger)

	return &app{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
		writeDB: writeDB,
		readDB:  readDB,
	}, nil
}

func (a *app) Close() {
	_ = a.writeDB.Close()
	_ = a.readDB.Close()
}

// currentActor identifies who is invoking permctl, recorded as the
// granted_by / revoked_by attribution.
func currentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

// grantRow shapes a grant for both table and JSON output.
type grantRow struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Command   string     `json:"command"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	GrantedBy string     `json:"granted_by"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	RevokedBy *string    `json:"revoked_by,omitempty"`
}

func toGrantRows(grants []domain.PermissionGrant) []grantRow {
	rows := make([]grantRow, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, grantRow{
			ID:        g.ID,
			Username:  g.Username,
			Command:   g.Command,
			GrantedAt: g.GrantedAt,
			ExpiresAt: g.ExpiresAt,
			GrantedBy: g.GrantedBy,
			LastUsed:  g.LastUsed,
			Revoked:   g.Revoked,
			RevokedAt: g.RevokedAt,
			RevokedBy: g.RevokedBy,
		})
	}
	return rows
}

func printGrants(cmd *cobra.Command, grants []domain.PermissionGrant) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), toGrantRows(grants))
	}
	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, []string{
			g.Username,
			g.Command,
			fmtTime(g.ExpiresAt),
			g.GrantedBy,
			fmtTimePtr(g.LastUsed),
		})
	}
	PrintTable(cmd.OutOrStdout(), []string{"user", "command", "expires", "granted by", "last used"}, rows)
	return nil
}
