package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"hazelinvoice/backend/internal/domain"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

const (
	tokenIssuer        = "hazel"
	tokenAudience      = "hazel-backoffice"
	userRefreshTimeout = 3 * time.Second
)

// UserStore is the slice of the repository the auth layer reads accounts from.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// AuthManager issues access tokens for back-office staff and checks the
// manager PIN that guards receipt voids.
type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	userStore  UserStore

	mu       sync.RWMutex
	accounts map[string]domain.UserAccount
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	a := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		accounts:  make(map[string]domain.UserAccount),
	}
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		if hashed, err := hashPassword(pin); err == nil {
			a.managerPIN = hashed
		}
	}
	a.refreshUsers(context.Background())
	return a
}

// Login checks the credentials and issues a signed access token. Accounts are
// re-read from the store first so users added by another process can log in.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.refreshUsers(ctx)

	account, ok := a.account(normalizeUsername(req.Username))
	if !ok || !verifyPassword(account.Password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !account.Active {
		return domain.LoginResponse{}, errInactiveAccount
	}

	actor := domain.Actor{Username: normalizeUsername(account.Username), Role: account.Role}
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.issueToken(actor, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        actor.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken verifies a bearer token and returns the actor it was issued to.
func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	var claims accessClaims
	_, err := jwtlib.ParseWithClaims(raw, &claims, a.signingKey,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithAudience(tokenAudience),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Actor{}, errInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}

func (a *AuthManager) issueToken(actor domain.Actor, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwtlib.ClaimStrings{tokenAudience},
			Subject:   actor.Username,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: actor.Role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) signingKey(t *jwtlib.Token) (any, error) {
	if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return a.secret, nil
}

// ValidateManagerPIN reports whether pin matches MANAGER_PIN. An unset PIN
// rejects everything.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	return a.managerPIN != "" && verifyPassword(a.managerPIN, pin)
}

func (a *AuthManager) account(username string) (domain.UserAccount, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	account, ok := a.accounts[username]
	return account, ok
}

// refreshUsers reloads the account cache. Plain-text passwords left by older
// seeds are rehashed and written back.
func (a *AuthManager) refreshUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, userRefreshTimeout)
	defer cancel()

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		return
	}

	fresh := make(map[string]domain.UserAccount, len(users))
	for _, user := range users {
		username := normalizeUsername(user.Username)
		if username == "" {
			continue
		}
		if !isPasswordHash(user.Password) {
			hashed, err := hashPassword(user.Password)
			if err != nil {
				continue
			}
			user.Password = hashed
			_ = a.userStore.UpdateUserPassword(ctx, user.Username, hashed)
		}
		fresh[username] = user
	}

	a.mu.Lock()
	for username, user := range fresh {
		a.accounts[username] = user
	}
	a.mu.Unlock()
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func verifyPassword(hash string, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" || !isPasswordHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}

func hashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func isPasswordHash(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}
