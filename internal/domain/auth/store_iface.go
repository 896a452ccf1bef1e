package auth

import "context"

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}
