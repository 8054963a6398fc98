package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"netsentry/internal/core"
)

const logTag = "Store"

// profileRow maps the profiles table.
type profileRow struct {
	bun.BaseModel `bun:"table:profiles"`

	SSID     string `bun:"ssid,pk"`
	Password string `bun:"password,notnull"`
}

// SQLite is the bun-backed Store implementation.
type SQLite struct {
	db  *bun.DB
	log *core.Logger
}

var _ Store = (*SQLite)(nil)

// Open opens the profile database at path, creating the file, its
// directory, and the schema as needed.
func Open(path string, log *core.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &SQLite{
		db:  bun.NewDB(sqlDB, sqlitedialect.New()),
		log: log,
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	log.Infof(logTag, "Profile database ready at %s", path)
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	// No position column: SQLite rowid order is the insertion order that
	// All promises.
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS profiles (
		ssid TEXT PRIMARY KEY,
		password TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	return nil
}

func (s *SQLite) Password(ctx context.Context, ssid string) (string, bool, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("ssid = ?", ssid).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup profile %s: %w", ssid, err)
	}
	return row.Password, true, nil
}

func (s *SQLite) All(ctx context.Context) ([]core.WifiCredential, error) {
	var rows []profileRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("rowid").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	creds := make([]core.WifiCredential, 0, len(rows))
	for _, r := range rows {
		creds = append(creds, core.WifiCredential{SSID: r.SSID, Password: r.Password})
	}
	return creds, nil
}

func (s *SQLite) UpsertBatch(ctx context.Context, creds []core.WifiCredential) (*ImportReport, error) {
	report := &ImportReport{}
	for _, cred := range creds {
		stored, found, err := s.Password(ctx, cred.SSID)
		if err != nil {
			return nil, err
		}
		switch {
		case !found:
			row := profileRow{SSID: cred.SSID, Password: cred.Password}
			if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
				return nil, fmt.Errorf("insert profile %s: %w", cred.SSID, err)
			}
			s.log.Infof(logTag, "Adding Wi-Fi %q as a new profile", cred.SSID)
			report.Added++
		case stored == cred.Password:
			s.log.Debugf(logTag, "Profile %q already exists with the same password, skipping", cred.SSID)
			report.Skipped++
		default:
			s.log.Infof(logTag, "Duplicate profile %q found with a different password", cred.SSID)
			report.Conflicts = append(report.Conflicts, Conflict{
				SSID:     cred.SSID,
				Stored:   stored,
				Incoming: cred.Password,
			})
		}
	}
	s.log.Infof(logTag, "Processed %d profiles: %d added, %d skipped, %d conflicts",
		len(creds), report.Added, report.Skipped, len(report.Conflicts))
	return report, nil
}

func (s *SQLite) Apply(ctx context.Context, resolutions []Resolution) error {
	for _, r := range resolutions {
		switch r.Action {
		case ResolveReplace:
			_, err := s.db.NewUpdate().Model((*profileRow)(nil)).
				Set("password = ?", r.Password).
				Where("ssid = ?", r.SSID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update profile %s: %w", r.SSID, err)
			}
			s.log.Infof(logTag, "Profile for %q updated", r.SSID)
		case ResolveSkip:
			s.log.Infof(logTag, "Profile for %q left unchanged", r.SSID)
		default:
			s.log.Warnf(logTag, "Unknown resolution %d for profile %q", r.Action, r.SSID)
		}
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, cred core.WifiCredential) error {
	row := profileRow{SSID: cred.SSID, Password: cred.Password}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (ssid) DO UPDATE").
		Set("password = EXCLUDED.password").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", cred.SSID, err)
	}
	s.log.Infof(logTag, "Profile for %q saved", cred.SSID)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, ssid string) error {
	res, err := s.db.NewDelete().Model((*profileRow)(nil)).Where("ssid = ?", ssid).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", ssid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.log.Warnf(logTag, "Profile for %q not found", ssid)
		return ErrNotFound
	}
	s.log.Infof(logTag, "Profile for %q deleted", ssid)
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
