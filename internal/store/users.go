package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

var (
	// ErrUserNotFound is returned when a mutation matches no active user.
	ErrUserNotFound = errors.New("user not found")
	// ErrLastAdmin is returned when a change would leave no active admin.
	ErrLastAdmin = errors.New("at least one active admin is required")
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser creates an active user. Usernames are unique among active
// users only; db.IsUniqueViolation reports a clash.
func CreateUser(ctx context.Context, q db.Querier, username, passwordHash, role string) (*model.User, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?) RETURNING id`,
		username, passwordHash, role,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}
	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID, including soft-deleted ones. It returns nil
// if there is no such user.
func GetUser(ctx context.Context, q db.Querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername returns the user with the given name. Active accounts win
// over soft-deleted ones that used the name before.
func GetUserByUsername(ctx context.Context, q db.Querier, username string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?
		 ORDER BY CASE WHEN deleted_at IS NULL THEN 0 ELSE 1 END, id DESC LIMIT 1`, username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", username, err)
	}
	return u, nil
}

// ListUsers returns active users ordered by ID.
func ListUsers(ctx context.Context, q db.Querier) ([]model.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountActiveUsers returns the number of active users with role, or of all
// active users when role is empty.
func CountActiveUsers(ctx context.Context, q db.Querier, role string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`
	var args []any
	if role != "" {
		query += ` AND role = ?`
		args = append(args, role)
	}

	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// UpdateUser changes an active user's role. Demoting the last active admin
// fails with ErrLastAdmin.
func UpdateUser(ctx context.Context, q db.Querier, id int64, role string) error {
	if role != model.RoleAdmin {
		if err := keepAnAdmin(ctx, q, id); err != nil {
			return err
		}
	}
	return updateActive(ctx, q, id, `UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`, role, id)
}

// UpdateUserPassword replaces an active user's password hash.
func UpdateUserPassword(ctx context.Context, q db.Querier, id int64, passwordHash string) error {
	return updateActive(ctx, q, id,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`, passwordHash, id)
}

// DeleteUser soft-deletes an active user. The last active admin cannot be
// deleted.
func DeleteUser(ctx context.Context, q db.Querier, id int64) error {
	if err := keepAnAdmin(ctx, q, id); err != nil {
		return err
	}
	return updateActive(ctx, q, id,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id)
}

func updateActive(ctx context.Context, q db.Querier, id int64, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// keepAnAdmin fails if id is the only active admin.
func keepAnAdmin(ctx context.Context, q db.Querier, id int64) error {
	u, err := GetUser(ctx, q, id)
	if err != nil {
		return err
	}
	if u == nil || u.DeletedAt != nil {
		return ErrUserNotFound
	}
	if u.Role != model.RoleAdmin {
		return nil
	}
	admins, err := CountActiveUsers(ctx, q, model.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}
