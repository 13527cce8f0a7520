package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazelinvoice/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true, CreatedAt: time.Now().UTC()},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, "admin123", users[0].Password, "password must be upgraded from plain text")
	assert.True(t, strings.HasPrefix(users[0].Password, "$2"), "expected bcrypt hash, got %s", users[0].Password)
	assert.GreaterOrEqual(t, store.updates, 1)
}

func TestLoginIssuesTokenCarryingRole(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"staff": {Username: "staff", Password: mustHashPassword(t, "staff123"), Role: domain.RoleStaff, Active: true},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " STAFF ", Password: "staff123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, resp.Role)

	actor, err := manager.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{Username: "staff", Role: domain.RoleStaff}, actor)

	_, err = NewAuthManager("other-secret", time.Hour, "123456", store).ParseToken(resp.AccessToken)
	assert.Error(t, err)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"former": {Username: "former", Password: mustHashPassword(t, "pass1234"), Role: domain.RoleStaff, Active: false},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "former", Password: "pass1234"})
	assert.ErrorIs(t, err, errInactiveAccount)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "former", Password: "nope"})
	assert.ErrorIs(t, err, errInvalidCredentials)
}

func TestLoginSeesUsersAddedAfterStartup(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "late", Password: "late1234"})
	require.ErrorIs(t, err, errInvalidCredentials)

	store.mu.Lock()
	store.users["late"] = domain.UserAccount{Username: "late", Password: mustHashPassword(t, "late1234"), Role: domain.RoleStaff, Active: true}
	store.mu.Unlock()

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "late", Password: "late1234"})
	assert.NoError(t, err)
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, "654321", store)

	assert.NotEqual(t, "654321", manager.managerPIN, "manager pin must be stored as a hash")
	assert.True(t, manager.ValidateManagerPIN("654321"))
	assert.True(t, manager.ValidateManagerPIN(" 654321 "))
	assert.False(t, manager.ValidateManagerPIN("111111"))
	assert.False(t, manager.ValidateManagerPIN(""))
}
