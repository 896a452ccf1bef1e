package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Service struct {
	store  StoreAPI
	secret string
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewService(store StoreAPI, secret string, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{store: store, secret: secret, ttl: ttl, now: time.Now, log: log}
}

// Login verifies credentials and issues a signed token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	token, err := GenerateToken(s.secret, Claims{
		UserID:   user.ID,
		Email:    user.Email,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, s.ttl, now)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.Warn("update last_login failed", zap.String("userId", user.ID), zap.Error(err))
	}

	return LoginResult{Token: token, ExpiresAt: now.Add(s.ttl), User: user}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.store.HasPermission(ctx, roleID, permission)
}
