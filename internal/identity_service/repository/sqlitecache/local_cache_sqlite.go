// Package sqlitecache provides the node-local cache gateway on embedded
// SQLite. The cache holds copies only: once a sync succeeds the remote store
// is the source of truth.
package sqlitecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS cached_profiles (
	variant TEXT NOT NULL,
	uid TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	avatar_remote_ref TEXT NOT NULL DEFAULT '',
	avatar_pending_local_ref TEXT NOT NULL DEFAULT '',
	stall_name TEXT NOT NULL DEFAULT '',
	market_city TEXT NOT NULL DEFAULT '',
	last_updated INTEGER NOT NULL,
	needs_sync INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (variant, uid)
);
CREATE TABLE IF NOT EXISTS pending_uploads (
	id TEXT PRIMARY KEY,
	uid TEXT NOT NULL,
	local_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_uploads_uid ON pending_uploads (uid);
CREATE TABLE IF NOT EXISTS auth_cache (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	uid TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	auth_time INTEGER NOT NULL
);
`

// Store persists cached identity state in SQLite. database/sql serializes
// access internally, so callers never coordinate.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the cache database and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite cache: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) GetProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT display_name, contact_phone, contact_email, avatar_remote_ref,
		       avatar_pending_local_ref, stall_name, market_city, last_updated, needs_sync
		FROM cached_profiles WHERE variant = ? AND uid = ?`,
		string(variant), uid)

	var p domain.Profile
	var lastUpdated int64
	var needsSync int
	err := row.Scan(&p.DisplayName, &p.ContactPhone, &p.ContactEmail, &p.AvatarRemoteRef,
		&p.AvatarPendingLocalRef, &p.StallName, &p.MarketCity, &lastUpdated, &needsSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached profile: %w", err)
	}
	p.UID = uid
	p.Variant = variant
	p.LastUpdated = fromMillis(lastUpdated)
	p.NeedsSync = needsSync != 0
	return &p, nil
}

func (s *Store) PutProfile(ctx context.Context, profile *domain.Profile) error {
	needsSync := 0
	if profile.NeedsSync {
		needsSync = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO cached_profiles (variant, uid, display_name, contact_phone, contact_email,
			avatar_remote_ref, avatar_pending_local_ref, stall_name, market_city, last_updated, needs_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (variant, uid) DO UPDATE SET
			display_name = excluded.display_name,
			contact_phone = excluded.contact_phone,
			contact_email = excluded.contact_email,
			avatar_remote_ref = excluded.avatar_remote_ref,
			avatar_pending_local_ref = excluded.avatar_pending_local_ref,
			stall_name = excluded.stall_name,
			market_city = excluded.market_city,
			last_updated = excluded.last_updated,
			needs_sync = excluded.needs_sync`,
		string(profile.Variant), profile.UID, profile.DisplayName, profile.ContactPhone,
		profile.ContactEmail, profile.AvatarRemoteRef, profile.AvatarPendingLocalRef,
		profile.StallName, profile.MarketCity, toMillis(profile.LastUpdated), needsSync)
	if err != nil {
		return fmt.Errorf("write cached profile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, variant domain.Variant, uid string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cached_profiles WHERE variant = ? AND uid = ?`,
		string(variant), uid); err != nil {
		return fmt.Errorf("delete cached profile: %w", err)
	}
	return nil
}

func (s *Store) PendingUploads(ctx context.Context, uid string) ([]domain.PendingUpload, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, local_path, kind, created_at FROM pending_uploads WHERE uid = ? ORDER BY created_at`,
		uid)
	if err != nil {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}
	defer rows.Close()

	var items []domain.PendingUpload
	for rows.Next() {
		var item domain.PendingUpload
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.LocalPath, &item.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending upload: %w", err)
		}
		item.UID = uid
		item.CreatedAt = fromMillis(createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) PutPendingUpload(ctx context.Context, item *domain.PendingUpload) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO pending_uploads (id, uid, local_path, kind, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			local_path = excluded.local_path,
			kind = excluded.kind`,
		item.ID, item.UID, item.LocalPath, item.Kind, toMillis(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("write pending upload: %w", err)
	}
	return nil
}

func (s *Store) DeletePendingUploads(ctx context.Context, uid string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM pending_uploads WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("delete pending uploads: %w", err)
	}
	return nil
}

func (s *Store) GetAuthCache(ctx context.Context) (*domain.AuthCacheEntry, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT uid, phone, email, display_name, auth_time FROM auth_cache WHERE id = 1`)

	var entry domain.AuthCacheEntry
	var authTime int64
	err := row.Scan(&entry.UID, &entry.PhoneNumber, &entry.Email, &entry.DisplayName, &authTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read auth cache: %w", err)
	}
	entry.AuthTime = fromMillis(authTime)
	return &entry, nil
}

func (s *Store) PutAuthCache(ctx context.Context, entry *domain.AuthCacheEntry) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO auth_cache (id, uid, phone, email, display_name, auth_time)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			uid = excluded.uid,
			phone = excluded.phone,
			email = excluded.email,
			display_name = excluded.display_name,
			auth_time = excluded.auth_time`,
		entry.UID, entry.PhoneNumber, entry.Email, entry.DisplayName, toMillis(entry.AuthTime))
	if err != nil {
		return fmt.Errorf("write auth cache: %w", err)
	}
	return nil
}

func (s *Store) DeleteAuthCache(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM auth_cache WHERE id = 1`); err != nil {
		return fmt.Errorf("delete auth cache: %w", err)
	}
	return nil
}
