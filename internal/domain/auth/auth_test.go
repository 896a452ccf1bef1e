package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStore struct {
	users       map[string]User
	perms       map[string][]string
	lastLoginID string
}

func (f *fakeStore) FindActiveUserByEmail(_ context.Context, email string) (User, error) {
	u, ok := f.users[email]
	if !ok || u.Status != UserStatusActive {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, userID string) error {
	f.lastLoginID = userID
	return nil
}

func (f *fakeStore) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	for _, p := range f.perms[roleID] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	hash, err := HashPassword("Sup3rSecret")
	require.NoError(t, err)
	return &fakeStore{
		users: map[string]User{
			"csr@example.com":      {ID: "u-1", Email: "csr@example.com", RoleID: "r-csr", RoleName: RoleCSR, Status: UserStatusActive, PasswordHash: hash},
			"disabled@example.com": {ID: "u-2", Email: "disabled@example.com", RoleID: "r-csr", RoleName: RoleCSR, Status: UserStatusDisabled, PasswordHash: hash},
		},
		perms: map[string][]string{"r-csr": RolePermissions[RoleCSR]},
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	store := newFakeStore(t)
	svc := NewService(store, "test-secret", time.Hour, zaptest.NewLogger(t))

	result, err := svc.Login(context.Background(), "csr@example.com", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, "u-1", store.lastLoginID)

	claims, err := ParseToken("test-secret", result.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, RoleCSR, claims.RoleName)
	assert.Equal(t, "consenthub", claims.Issuer)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(newFakeStore(t), "test-secret", time.Hour, zaptest.NewLogger(t))

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "csr@example.com", password: "nope"},
		{name: "unknown user", email: "ghost@example.com", password: "Sup3rSecret"},
		{name: "disabled user", email: "disabled@example.com", password: "Sup3rSecret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.email, tc.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken("secret-a", Claims{UserID: "u-1", RoleName: RoleAdmin}, time.Hour, time.Now())
	require.NoError(t, err)

	_, err = ParseToken("secret-b", token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired, err := GenerateToken("secret-a", Claims{UserID: "u-1"}, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken("secret-a", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRolePermissionsAreKnown(t *testing.T) {
	known := map[string]bool{}
	for _, p := range DefaultPermissions {
		known[p] = true
	}
	for role, perms := range RolePermissions {
		for _, p := range perms {
			assert.True(t, known[p], "role %s references unknown permission %s", role, p)
		}
	}
	assert.ElementsMatch(t, DefaultPermissions, RolePermissions[RoleAdmin])
	assert.NotContains(t, RolePermissions[RoleCustomer], PermDSARProcess)
}

func TestUserContextRoles(t *testing.T) {
	assert.True(t, UserContext{RoleName: RoleAdmin}.IsAdmin())
	assert.True(t, UserContext{RoleName: RoleCSR}.IsStaff())
	assert.False(t, UserContext{RoleName: RoleGuardian}.IsStaff())
}
