package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/rihigo/notify/internal/model"
)

// settingUnreadCount is the settings key holding the cached unread count.
const settingUnreadCount = "unread_count"

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveFeed replaces the cached feed with items (in display order) and
// records the unread count alongside it.
func (s *SQLiteStore) SaveFeed(
	ctx context.Context,
	items []model.Notification,
	unread int,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	const query = `
		INSERT INTO notifications (
			id, position, type, priority,
			title, body, is_read, read_at,
			created_at, action_url, action_label
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, n := range items {
		var readAt interface{}
		if n.ReadAt != nil {
			readAt = n.ReadAt.UTC()
		}

		_, err = stmt.ExecContext(ctx,
			n.ID, i, string(n.Type), string(n.Priority),
			n.Title, n.Body, boolToInt(n.IsRead), readAt,
			n.CreatedAt.UTC(), n.ActionURL, n.ActionLabel,
		)
		if err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	if err := setSetting(ctx, tx, settingUnreadCount, strconv.Itoa(unread)); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadFeed returns up to limit cached notifications in display order and
// the cached unread count. A non-positive limit returns everything.
func (s *SQLiteStore) LoadFeed(
	ctx context.Context,
	limit int,
) ([]model.Notification, int, error) {
	query := "SELECT * FROM notifications ORDER BY position ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("querying cached notifications: %w", err)
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	unread := 0
	if raw, ok, err := s.GetSetting(ctx, settingUnreadCount); err != nil {
		return nil, 0, err
	} else if ok {
		unread, _ = strconv.Atoi(raw)
	}

	return items, unread, nil
}

// SaveSubscription stores the device push subscription, replacing any
// previous one.
func (s *SQLiteStore) SaveSubscription(
	ctx context.Context,
	sub model.PushSubscription,
) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM push_subscriptions"); err != nil {
		return fmt.Errorf("clearing push subscriptions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO push_subscriptions (
			endpoint, p256dh, auth, application_server_key, created_at
		) VALUES (?, ?, ?, ?, ?)`,
		sub.Endpoint, sub.P256DH, sub.Auth,
		sub.ApplicationServerKey, sub.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving push subscription: %w", err)
	}

	return tx.Commit()
}

// GetSubscription returns the stored push subscription, or nil when the
// device has none.
func (s *SQLiteStore) GetSubscription(
	ctx context.Context,
) (*model.PushSubscription, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT endpoint, p256dh, auth, application_server_key, created_at
		FROM push_subscriptions LIMIT 1`)

	var sub model.PushSubscription
	err := row.Scan(
		&sub.Endpoint, &sub.P256DH, &sub.Auth,
		&sub.ApplicationServerKey, &sub.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting push subscription: %w", err)
	}

	return &sub, nil
}

// DeleteSubscription removes the stored push subscription.
func (s *SQLiteStore) DeleteSubscription(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions"); err != nil {
		return fmt.Errorf("deleting push subscription: %w", err)
	}
	return nil
}

// GetSetting reads a setting value. The bool is false when unset.
func (s *SQLiteStore) GetSetting(
	ctx context.Context,
	key string,
) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting writes a setting value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, s.db, key, value)
}

func setSetting(ctx context.Context, ex sqlx.ExecerContext, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n         model.Notification
		position  int
		typ       string
		priority  string
		readInt   int
		readAt    sql.NullTime
		createdAt time.Time
	)

	err := rows.Scan(
		&n.ID, &position, &typ, &priority,
		&n.Title, &n.Body, &readInt, &readAt,
		&createdAt, &n.ActionURL, &n.ActionLabel,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Type = model.NotificationType(typ)
	n.Priority = model.Priority(priority)
	n.IsRead = readInt != 0
	n.CreatedAt = createdAt
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
