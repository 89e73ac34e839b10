package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/concord-chat/devchat/internal/models"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// New opens the database and applies pending migrations
func New(path string) (*DB, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	wrapper := &DB{db}
	if err := wrapper.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return wrapper, nil
}

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its settings in package globals
var migrateMu sync.Mutex

// migrate brings the schema up to the latest embedded migration
func (db *DB) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db.DB, "migrations")
}

// --- Account Operations ---

// CreateAccount inserts a new account
func (db *DB) CreateAccount(ctx context.Context, acc *models.Account) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, display_name, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acc.ID, acc.Email, acc.PasswordHash, acc.DisplayName, acc.PhotoURL, acc.CreatedAt, acc.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// GetAccountByID retrieves an account by id
func (db *DB) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return db.scanAccount(db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, photo_url, created_at, updated_at
		FROM accounts WHERE id = ?`, id))
}

// GetAccountByEmail retrieves an account by email, ignoring case
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return db.scanAccount(db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, photo_url, created_at, updated_at
		FROM accounts WHERE email = ? COLLATE NOCASE`, email))
}

// UpdateAccountProfile sets the display name and photo of an account
func (db *DB) UpdateAccountProfile(ctx context.Context, id, displayName, photoURL string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE accounts SET display_name = ?, photo_url = ?, updated_at = ?
		WHERE id = ?`,
		displayName, photoURL, time.Now(), id)
	if err != nil {
		return err
	}
	return expectRows(res)
}

func (db *DB) scanAccount(row *sql.Row) (*models.Account, error) {
	acc := &models.Account{}
	var displayName, photoURL sql.NullString

	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &displayName, &photoURL,
		&acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if displayName.Valid {
		acc.DisplayName = displayName.String
	}
	if photoURL.Valid {
		acc.PhotoURL = photoURL.String
	}
	return acc, nil
}

// --- Session Operations ---

// CreateSession records a new session for accountID and returns its id
func (db *DB) CreateSession(ctx context.Context, accountID, userAgent string, expiresAt time.Time) (string, error) {
	sessionID := uuid.New().String()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, created_at, expires_at, user_agent)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, accountID, time.Now(), expiresAt, userAgent)
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// SessionValid reports whether the session exists, belongs to accountID and
// has not expired
func (db *DB) SessionValid(ctx context.Context, sessionID, accountID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE id = ? AND account_id = ? AND expires_at > ?`,
		sessionID, accountID, time.Now()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteSession removes a session
func (db *DB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// DeleteExpiredSessions removes sessions past their expiry
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- User Directory Operations ---

// PutUser creates or replaces the directory record for id
func (db *DB) PutUser(ctx context.Context, id string, rec models.UserRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, avatar, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, avatar = excluded.avatar,
			updated_at = excluded.updated_at`,
		id, rec.Name, rec.Avatar, time.Now())
	return err
}

// GetUser retrieves the directory record for id
func (db *DB) GetUser(ctx context.Context, id string) (*models.UserRecord, error) {
	rec := &models.UserRecord{}
	var avatar sql.NullString

	err := db.QueryRowContext(ctx, `SELECT name, avatar FROM users WHERE id = ?`, id).Scan(&rec.Name, &avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Avatar = avatar.String
	return rec, nil
}

// --- Channel Log Operations ---

// StoredChannel is a channel with its position in the log
type StoredChannel struct {
	Seq     int64
	Channel models.Channel
}

// AppendChannel adds ch to the log under its id. Appending an id that is
// already stored changes nothing and returns inserted == false.
func (db *DB) AppendChannel(ctx context.Context, ch models.Channel, creatorID string) (seq int64, inserted bool, err error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO channels (id, name, details, created_by_name, created_by_avatar, created_by_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		ch.ID, ch.Name, ch.Details, ch.CreatedBy.Name, ch.CreatedBy.Avatar, creatorID, time.Now())
	if err != nil {
		return 0, false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}

	seq, err = res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

// ListChannels returns the log in append order
func (db *DB) ListChannels(ctx context.Context) ([]StoredChannel, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, id, name, details, created_by_name, created_by_avatar
		FROM channels ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredChannel
	for rows.Next() {
		var sc StoredChannel
		var byName, byAvatar sql.NullString
		if err := rows.Scan(&sc.Seq, &sc.Channel.ID, &sc.Channel.Name, &sc.Channel.Details, &byName, &byAvatar); err != nil {
			return nil, err
		}
		sc.Channel.CreatedBy = models.Creator{Name: byName.String, Avatar: byAvatar.String}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// CountChannels returns the number of stored channels
func (db *DB) CountChannels(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n)
	return n, err
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
