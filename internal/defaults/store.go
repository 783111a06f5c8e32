package defaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

// Encryptor protects stored platform keys.
type Encryptor interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// UserDetails are the platform credentials a GitHub user registered.
type UserDetails struct {
	User    string
	Server  string
	APIKey  string
	Created time.Time
}

// SQLiteStore persists per-user defaults and platform credentials.
//
// Writes are last-write-wins. Two requests from the same user updating the same
// default race, and whichever commits second is kept.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	crypto Encryptor
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the store at dbPath.
func NewSQLiteStore(dbPath string, crypto Encryptor) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if crypto == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Pragmas go in the DSN so every pool connection is configured
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, dbPath: dbPath, crypto: crypto, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("dbPath", dbPath).Msg("SQLite user store initialized")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_defaults (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, name)
	);

	CREATE TABLE IF NOT EXISTS user_details (
		user_id TEXT PRIMARY KEY,
		server TEXT NOT NULL,
		api_key TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_user_details_created ON user_details(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the stored default, or "" when none is set.
func (s *SQLiteStore) Get(ctx context.Context, user string, name Name) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_defaults WHERE user_id = ? AND name = ?`,
		user, string(name)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read default %q: %w", name, err)
	}
	return value, nil
}

// Set stores a default, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, user string, name Name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_defaults (user_id, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		user, string(name), value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save default %q: %w", name, err)
	}
	return nil
}

// DeleteAll removes every default the user has set.
func (s *SQLiteStore) DeleteAll(ctx context.Context, user string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_defaults WHERE user_id = ?`, user); err != nil {
		return fmt.Errorf("failed to delete defaults: %w", err)
	}
	return nil
}

// SaveUserDetails stores the user's platform server and key. The key is encrypted at rest.
func (s *SQLiteStore) SaveUserDetails(ctx context.Context, details UserDetails) error {
	encrypted, err := s.crypto.EncryptString(details.APIKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_details (user_id, server, api_key, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET server = excluded.server, api_key = excluded.api_key, created_at = excluded.created_at`,
		details.User, details.Server, encrypted, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save user details: %w", err)
	}
	return nil
}

// UserDetails loads the user's platform credentials. A user with no stored details
// is UserNotConfigured; a key that no longer decrypts is InvalidCredential.
func (s *SQLiteStore) UserDetails(ctx context.Context, user string) (UserDetails, error) {
	const op = "load_user_details"
	var (
		details   = UserDetails{User: user}
		encrypted string
		created   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT server, api_key, created_at FROM user_details WHERE user_id = ?`, user).
		Scan(&details.Server, &encrypted, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return UserDetails{}, internalerrors.NewUserNotConfigured(op)
	}
	if err != nil {
		return UserDetails{}, fmt.Errorf("failed to read user details: %w", err)
	}

	key, err := s.crypto.DecryptString(encrypted)
	if err != nil {
		return UserDetails{}, internalerrors.NewInvalidCredential(op, err)
	}
	details.APIKey = key
	details.Created = time.Unix(created, 0)
	return details, nil
}

// DeleteUser removes the user's credentials and defaults.
func (s *SQLiteStore) DeleteUser(ctx context.Context, user string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_details WHERE user_id = ?`, user); err != nil {
		return fmt.Errorf("failed to delete user details: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_defaults WHERE user_id = ?`, user); err != nil {
		return fmt.Errorf("failed to delete defaults: %w", err)
	}
	return tx.Commit()
}

// DeleteAllRecords empties both tables.
func (s *SQLiteStore) DeleteAllRecords(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"user_details", "user_defaults"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// DeleteUserDetailsOlderThan removes credentials registered before now minus maxAge
// and returns how many were removed.
func (s *SQLiteStore) DeleteUserDetailsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_details WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired user details: %w", err)
	}
	return result.RowsAffected()
}
