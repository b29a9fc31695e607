package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/models"

	"github.com/google/uuid"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser stores a new user, assigning an id when none is set. A duplicate
// email or username yields a Conflict error.
func (d *Database) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertUserQuery,
			user.ID, user.Name, user.Username, user.Email, user.PasswordHash, user.Pic,
			user.IsAdmin, toMillis(user.CreatedAt), toMillis(user.UpdatedAt))
		return err
	}, "create user")
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperrors.NewConflictError("user", "User already exists")
		}
		return classify("create user", err)
	}
	return nil
}

// GetUser returns nil, nil when no user has the given id.
func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	return d.getUser(ctx, SelectUserByIDQuery, id)
}

// GetUserByEmail returns nil, nil when no user has the given email.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.getUser(ctx, SelectUserByEmailQuery, email)
}

func (d *Database) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	user, err := retryableDBOperation(ctx, func() (*models.User, error) {
		return scanUser(d.db.QueryRowContext(ctx, query, arg))
	}, "get user")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get user", err)
	}
	return user, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (d *Database) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return d.queryUsers(ctx, selectUserColumns+" WHERE id IN ("+placeholders+")", args...)
}

// SearchUsers matches name, email or username case-insensitively and
// excludes the caller.
func (d *Database) SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]*models.User, error) {
	pattern := "%" + escapeLike(query) + "%"
	return d.queryUsers(ctx, SearchUsersQuery, excludeID, pattern, pattern, pattern, limit)
}

func (d *Database) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	users, err := retryableDBOperation(ctx, func() ([]*models.User, error) {
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		var users []*models.User
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return nil, err
			}
			users = append(users, user)
		}
		return users, rows.Err()
	}, "query users")
	if err != nil {
		return nil, classify("query users", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var createdAt, updatedAt int64
	if err := row.Scan(&user.ID, &user.Name, &user.Username, &user.Email, &user.PasswordHash,
		&user.Pic, &user.IsAdmin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
