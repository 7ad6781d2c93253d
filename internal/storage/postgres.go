package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already taken")
)

const uniqueViolation = "23505"

type keyTable struct {
	name          string
	discriminator string
}

var keyTables = map[KeyKind]keyTable{
	KindAI:         {name: "ai_api_keys", discriminator: "provider"},
	KindTrading:    {name: "trading_api_keys", discriminator: "access_type"},
	KindMarketData: {name: "market_data_api_keys", discriminator: "provider"},
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = "id, email, password_hash, first_name, last_name, profile_picture, is_active, created_at, updated_at"

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING `+userColumns+`
	`, email, passwordHash)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return mapNoRows(scanUser(row))
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, userID)
	return mapNoRows(scanUser(row))
}

func (s *Store) UpdateUser(ctx context.Context, userID int64, patch UserPatch) (*User, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.ProfilePicture != nil {
		add("profile_picture", *patch.ProfilePicture)
	}

	args = append(args, userID)
	query := fmt.Sprintf(`
		UPDATE users
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func keyColumns(tbl keyTable) string {
	return fmt.Sprintf("id, user_id, title, %s, api_key, is_active, last_used, deleted_at, created_at, updated_at", tbl.discriminator)
}

func (s *Store) ListKeys(ctx context.Context, kind KeyKind, userID int64) ([]APIKey, error) {
	tbl := keyTables[kind]
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, keyColumns(tbl), tbl.name), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *key)
	}
	return items, rows.Err()
}

// FindActiveOwned resolves a key by id only when it belongs to userID and has
// not been soft-deleted; anything else is ErrNotFound.
func (s *Store) FindActiveOwned(ctx context.Context, kind KeyKind, userID, keyID int64) (*APIKey, error) {
	tbl := keyTables[kind]
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, keyColumns(tbl), tbl.name), keyID, userID)
	return mapNoRowsKey(scanKey(row))
}

// CreateKey inserts the key and its audit row in one transaction.
func (s *Store) CreateKey(ctx context.Context, kind KeyKind, userID int64, title, discriminator, apiKey string, log KeyLog) (*APIKey, error) {
	tbl := keyTables[kind]

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, title, %s, api_key, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		RETURNING %s
	`, tbl.name, tbl.discriminator, keyColumns(tbl)), userID, title, discriminator, apiKey)

	key, err := scanKey(row)
	if err != nil {
		return nil, err
	}

	if err := insertKeyLog(ctx, tx, log); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return key, nil
}

// UpdateKey applies the patch to an owned, non-deleted key and writes the
// audit row in the same transaction. ErrNotFound covers missing, soft-deleted
// and foreign keys alike.
func (s *Store) UpdateKey(ctx context.Context, kind KeyKind, userID, keyID int64, patch KeyPatch, log KeyLog) (*APIKey, error) {
	tbl := keyTables[kind]

	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Discriminator != nil {
		add(tbl.discriminator, *patch.Discriminator)
	}
	if patch.APIKey != nil {
		add("api_key", *patch.APIKey)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	args = append(args, keyID, userID)
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE id = $%d AND user_id = $%d AND deleted_at IS NULL
		RETURNING %s
	`, tbl.name, strings.Join(sets, ", "), len(args)-1, len(args), keyColumns(tbl))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	key, err := mapNoRowsKey(scanKey(tx.QueryRow(ctx, query, args...)))
	if err != nil {
		return nil, err
	}

	if err := insertKeyLog(ctx, tx, log); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return key, nil
}

// SoftDeleteKey stamps deleted_at and clears is_active; the row stays behind
// for the audit trail.
func (s *Store) SoftDeleteKey(ctx context.Context, kind KeyKind, userID, keyID int64, log KeyLog) error {
	tbl := keyTables[kind]

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	cmd, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = now(), is_active = false, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, tbl.name), keyID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := insertKeyLog(ctx, tx, log); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TouchKeyLastUsed is best-effort; callers log failures and move on.
func (s *Store) TouchKeyLastUsed(ctx context.Context, kind KeyKind, keyID int64) error {
	tbl := keyTables[kind]
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET last_used = now()
		WHERE id = $1
	`, tbl.name), keyID)
	return err
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertKeyLog(ctx context.Context, q execer, log KeyLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO api_key_logs (user_id, key_type, action, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, log.UserID, string(log.KeyType), log.Action, log.IPAddress, log.UserAgent)
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.ProfilePicture, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanKey(row pgx.Row) (*APIKey, error) {
	var key APIKey
	if err := row.Scan(&key.ID, &key.UserID, &key.Title, &key.Discriminator, &key.APIKey,
		&key.IsActive, &key.LastUsed, &key.DeletedAt, &key.CreatedAt, &key.UpdatedAt); err != nil {
		return nil, err
	}
	return &key, nil
}

func mapNoRows(user *User, err error) (*User, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

func mapNoRowsKey(key *APIKey, err error) (*APIKey, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return key, err
}
