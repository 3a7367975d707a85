// Package sqlstore is an identity.Directory over database/sql. It runs on
// SQLite (modernc.org/sqlite, driver "sqlite") and PostgreSQL (pgx stdlib,
// driver "pgx"); the schema is applied with goose on Open.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/identityauth/directory/sqlstore/migrations"
	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/password"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dialect := "postgres"
	if driver == DriverSQLite {
		dialect = "sqlite3"
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Store implements identity.Directory.
type Store struct {
	db     *sql.DB
	driver string

	hasher    *password.Argon2
	policy    password.Policy
	dummyHash string
}

// Option customises a Store.
type Option func(*Store)

// WithPolicy replaces the default password policy.
func WithPolicy(p password.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// Open connects to dsn, migrates the schema and returns a Store that owns
// the connection pool.
func Open(ctx context.Context, driver, dsn string, hasher *password.Argon2, opts ...Option) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; concurrent connections only produce SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	if err := Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	s, err := New(db, driver, hasher, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already migrated database.
func New(db *sql.DB, driver string, hasher *password.Argon2, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is required")
	}
	if hasher == nil {
		return nil, errors.New("sqlstore: hasher is required")
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: dummy hash: %w", err)
	}
	s := &Store{
		db:        db,
		driver:    driver,
		hasher:    hasher,
		policy:    password.DefaultPolicy(),
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind turns $N placeholders into SQLite's ?N form.
func (s *Store) rebind(query string) string {
	if s.driver != DriverSQLite {
		return query
	}
	return strings.ReplaceAll(query, "$", "?")
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

const userColumns = `id, username, email, first_name, last_name, refresh_token, refresh_expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, extra ...any) (*identity.User, error) {
	var (
		u         identity.User
		token     sql.NullString
		expiresAt sql.NullInt64
	)
	dest := append([]any{&u.ID, &u.UserName, &u.Email, &u.FirstName, &u.LastName, &token, &expiresAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("sqlstore: db error: %w", err)
	}
	if token.Valid {
		u.Refresh = &identity.RefreshRecord{
			Value:     token.String,
			ExpiresAt: time.UnixMilli(expiresAt.Int64),
		}
	}
	return &u, nil
}

// VerifyPassword checks username/password. Unknown users still pay for one
// hash verification.
func (s *Store) VerifyPassword(ctx context.Context, username, pw string) (*identity.User, error) {
	var hash string
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+`, password_hash FROM users WHERE username_key = $1`), usernameKey(username))
	u, err := scanUser(row, &hash)
	if errors.Is(err, identity.ErrUserNotFound) {
		_, _ = s.hasher.Verify(pw, s.dummyHash)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(pw, hash)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: verify: %w", err)
	}
	if !ok {
		return nil, identity.ErrInvalidPassword
	}
	s.upgradeHash(ctx, u.ID, hash, pw)
	return u, nil
}

// upgradeHash rehashes pw under the current parameters when stored was made
// with weaker ones. Failures leave the old hash in place.
func (s *Store) upgradeHash(ctx context.Context, userID, stored, pw string) {
	if stale, err := s.hasher.NeedsUpgrade(stored); err != nil || !stale {
		return
	}
	fresh, err := s.hasher.Hash(pw)
	if err != nil {
		return
	}
	_, _ = s.db.ExecContext(ctx, s.rebind(`UPDATE users SET password_hash = $1 WHERE id = $2 AND password_hash = $3`), fresh, userID, stored)
}

// FindByID looks a user up by id.
func (s *Store) FindByID(ctx context.Context, id string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	return scanUser(row)
}

// FindByUsername looks a user up by username, ignoring case.
func (s *Store) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE username_key = $1`), usernameKey(username))
	return scanUser(row)
}

// Create registers a new user whose username is the profile email.
func (s *Store) Create(ctx context.Context, profile identity.Profile, pw string) (*identity.User, error) {
	profile = identity.NormalizeProfile(profile)
	problems := identity.ValidateProfile(profile)
	problems = append(problems, s.policy.Validate(pw)...)
	if len(problems) > 0 {
		return nil, &identity.ValidationError{Problems: problems}
	}

	key := usernameKey(profile.Email)
	taken, err := s.usernameTaken(ctx, key)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &identity.ValidationError{Problems: []string{identity.DuplicateEmail(profile.Email)}}
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: hash: %w", err)
	}

	u := identity.User{
		ID:        uuid.NewString(),
		UserName:  profile.Email,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (id, username, username_key, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		u.ID, u.UserName, key, u.Email, u.FirstName, u.LastName, hash)
	if err != nil {
		// A concurrent registration can win between the check and the insert.
		if taken, checkErr := s.usernameTaken(ctx, key); checkErr == nil && taken {
			return nil, &identity.ValidationError{Problems: []string{identity.DuplicateEmail(profile.Email)}}
		}
		return nil, fmt.Errorf("sqlstore: db error: %w", err)
	}
	return &u, nil
}

func (s *Store) usernameTaken(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM users WHERE username_key = $1`), key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlstore: db error: %w", err)
	}
	return n > 0, nil
}

func (s *Store) userExists(ctx context.Context, userID string) error {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM users WHERE id = $1`), userID).Scan(&n)
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	if n == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// GetRoles returns the user's roles sorted by name.
func (s *Store) GetRoles(ctx context.Context, userID string) ([]identity.Role, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`), userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: db error: %w", err)
	}
	defer rows.Close()

	var roles []identity.Role
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("sqlstore: db error: %w", err)
		}
		roles = append(roles, identity.Role(r))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: db error: %w", err)
	}
	return roles, nil
}

// AddToRole is idempotent.
func (s *Store) AddToRole(ctx context.Context, userID string, role identity.Role) error {
	if !role.Valid() {
		return fmt.Errorf("sqlstore: unknown role %q", role)
	}
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`), userID, string(role))
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	return nil
}

// RemoveFromRole revokes role; a no-op when the user does not hold it.
func (s *Store) RemoveFromRole(ctx context.Context, userID string, role identity.Role) error {
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM user_roles WHERE user_id = $1 AND role = $2`), userID, string(role))
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	return nil
}

// UpdateRefreshState overwrites the user's refresh record.
func (s *Store) UpdateRefreshState(ctx context.Context, userID string, record identity.RefreshRecord) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET refresh_token = $1, refresh_expires_at = $2 WHERE id = $3`),
		record.Value, record.ExpiresAt.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	if n == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// SwapRefreshState replaces the record only when presented matches a live
// record. The conditional UPDATE is the atomic step; a follow-up read only
// classifies a miss.
func (s *Store) SwapRefreshState(ctx context.Context, userID, presented string, next identity.RefreshRecord, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE users SET refresh_token = $1, refresh_expires_at = $2
		WHERE id = $3 AND refresh_token = $4 AND refresh_expires_at > $5`),
		next.Value, next.ExpiresAt.UnixMilli(), userID, presented, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.Refresh.Check(presented, now); err != nil {
		return err
	}
	return identity.ErrRefreshMismatch
}
