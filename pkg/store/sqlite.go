package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/pkg/descriptor"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS devices (
	uuid         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	family       TEXT NOT NULL,
	model        INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fingerprints (
	device_type TEXT NOT NULL,
	serial      TEXT NOT NULL,
	fingerprint BLOB NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (device_type, serial)
);`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:" for a private
// in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir for %s: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}
	if err := configureSQLite(db, path); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare schema: %w", err)
	}
	log.Debug("Opened sqlite store at %s", path)
	return &SQLite{db: db, path: path, now: time.Now}, nil
}

func configureSQLite(db *sql.DB, path string) error {
	pragmas := []string{
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL;")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("store: execute %s: %w", pragma, err)
		}
	}
	// A single connection keeps ":memory:" databases shared and avoids SQLITE_BUSY on writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func (s *SQLite) Fingerprint(ctx context.Context, deviceType, serial string) ([]byte, error) {
	var fp []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM fingerprints WHERE device_type = ? AND serial = ?`,
		deviceType, serial).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query fingerprint: %w", err)
	}
	return fp, nil
}

func (s *SQLite) SaveFingerprint(ctx context.Context, deviceType, serial string, fingerprint []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (device_type, serial, fingerprint, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_type, serial) DO UPDATE SET fingerprint=excluded.fingerprint, updated_at=excluded.updated_at`,
		deviceType, serial, copyBytes(fingerprint), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save fingerprint: %w", err)
	}
	return nil
}

func (s *SQLite) ForgetFingerprint(ctx context.Context, deviceType, serial string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM fingerprints WHERE device_type = ? AND serial = ?`, deviceType, serial)
	if err != nil {
		return fmt.Errorf("store: forget fingerprint: %w", err)
	}
	return nil
}

func (s *SQLite) Device(ctx context.Context, uuid string) (DeviceConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uuid, display_name, family, model, updated_at FROM devices WHERE uuid = ?`, uuid)
	cfg, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DeviceConfig{}, ErrNotFound
	}
	return cfg, err
}

func (s *SQLite) SaveDevice(ctx context.Context, cfg DeviceConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (uuid, display_name, family, model, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET display_name=excluded.display_name, family=excluded.family,
		 model=excluded.model, updated_at=excluded.updated_at`,
		cfg.UUID, cfg.DisplayName, cfg.Family.String(), int64(cfg.Model), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save device: %w", err)
	}
	return nil
}

func (s *SQLite) Devices(ctx context.Context) ([]DeviceConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, display_name, family, model, updated_at FROM devices ORDER BY uuid`)
	if err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceConfig
	for rows.Next() {
		cfg, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *SQLite) ForgetDevice(ctx context.Context, uuid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE uuid = ?`, uuid); err != nil {
		return fmt.Errorf("store: forget device: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (DeviceConfig, error) {
	var (
		cfg       DeviceConfig
		family    string
		model     int64
		updatedAt int64
	)
	if err := row.Scan(&cfg.UUID, &cfg.DisplayName, &family, &model, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeviceConfig{}, err
		}
		return DeviceConfig{}, fmt.Errorf("store: scan device: %w", err)
	}
	f, err := descriptor.ParseFamily(family)
	if err != nil {
		log.Warning("Stored device %s has unknown family '%s'", cfg.UUID, family)
		f = descriptor.FamilyNull
	}
	cfg.Family = f
	cfg.Model = uint32(model)
	cfg.UpdatedAt = time.UnixMilli(updatedAt)
	return cfg, nil
}
