// Package auth implements Kensa's credential store: salted PBKDF2 password
// hashes persisted in SQLite, keyed by unique username.
//
// Wrong passwords are data, not errors: Authenticate reports them through
// its boolean result. Errors are reserved for storage I/O failures.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// saltSize is the length of the random per-user salt in bytes.
	saltSize = 16
	// hashRounds is the PBKDF2 iteration count. Slow on purpose.
	hashRounds = 200_000
	// hashSize is the derived key length in bytes.
	hashSize = 32
)

// ErrWrongPassword is returned by ProvisionOrAuthenticate when the username
// exists but the supplied password does not match the stored hash. The call
// fails closed rather than provisioning a duplicate identity.
var ErrWrongPassword = errors.New("auth: wrong password for existing username")

// ErrUsernameTaken is returned by Provision when the username already exists.
var ErrUsernameTaken = errors.New("auth: username already exists")

// CredentialStore persists user identities in the users table.
type CredentialStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewCredentialStore creates a CredentialStore over the given database
// connection. The users table must exist (created by migration
// 0001_users.sql). If logger is nil, the default slog logger is used.
func NewCredentialStore(db *sql.DB, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{db: db, logger: logger, now: time.Now}
}

// hashPassword derives the storage hash for a password with the given salt.
func hashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, hashRounds, hashSize, sha256.New)
}

// Provision creates a new identity with a fresh random salt and returns its
// id. Returns ErrUsernameTaken when the username is already present.
func (s *CredentialStore) Provision(ctx context.Context, username, password string) (int64, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return 0, fmt.Errorf("auth: generate salt: %w", err)
	}
	pwHash := hashPassword(password, salt)

	// The UNIQUE constraint on username is the authoritative duplicate
	// check; a pre-query would race with concurrent provisioners.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, salt_b64, pw_hash_b64, created_ts)
		VALUES (?, ?, ?, ?)`,
		username,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(pwHash),
		float64(s.now().UnixNano())/1e9,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("auth: insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("auth: read inserted id: %w", err)
	}

	s.logger.Info("auth: provisioned user", "user_id", id, "username", username)
	return id, nil
}

// Authenticate verifies username+password against the stored salted hash.
// The boolean result is false for both unknown usernames and wrong
// passwords; an error means the store itself failed.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (int64, bool, error) {
	var (
		id        int64
		saltB64   string
		pwHashB64 string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, salt_b64, pw_hash_b64 FROM users WHERE username = ?",
		username,
	).Scan(&id, &saltB64, &pwHashB64)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("auth: query user: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return 0, false, fmt.Errorf("auth: decode salt: %w", err)
	}
	expected, err := base64.StdEncoding.DecodeString(pwHashB64)
	if err != nil {
		return 0, false, fmt.Errorf("auth: decode hash: %w", err)
	}

	got := hashPassword(password, salt)
	if subtle.ConstantTimeCompare(got, expected) != 1 {
		return 0, false, nil
	}
	return id, true, nil
}

// ProvisionOrAuthenticate returns the id for a matching username+password
// pair, provisions a new identity when the username is unknown, and fails
// with ErrWrongPassword when the username exists with a different password.
func (s *CredentialStore) ProvisionOrAuthenticate(ctx context.Context, username, password string) (int64, error) {
	id, ok, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}

	exists, err := s.usernameExists(ctx, username)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrWrongPassword
	}

	id, err = s.Provision(ctx, username, password)
	if errors.Is(err, ErrUsernameTaken) {
		// Lost a provisioning race; the password evidently does not match
		// the identity that won.
		return 0, ErrWrongPassword
	}
	return id, err
}

func (s *CredentialStore) usernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM users WHERE username = ?", username,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("auth: check username: %w", err)
	}
	return n > 0, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite does not export a typed error for this, so
// the message is matched the same way the driver's own tests do.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
