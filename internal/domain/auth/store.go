package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"consenthub/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userColumns = `u.id, u.email, u.name, u.phone, u.role_id, r.name, u.status, u.last_login, u.created_at, u.password_hash`

func scanUser(row pgx.Row) (User, error) {
	var out User
	err := row.Scan(&out.ID, &out.Email, &out.Name, &out.Phone, &out.RoleID, &out.RoleName, &out.Status, &out.LastLogin, &out.CreatedAt, &out.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return out, err
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE lower(u.email) = $1 AND u.status = $2
  `, strings.ToLower(strings.TrimSpace(email)), UserStatusActive))
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.id::text = $1
  `, id))
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM role_permissions rp
    JOIN permissions p ON rp.permission_id = p.id
    WHERE rp.role_id = $1 AND p.key = $2
  `, roleID, permission).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
