package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/caltrack/caltrack/internal/platform/httpx"
	"github.com/caltrack/caltrack/internal/rbac"
)

// ErrUnauthenticated reports that no principal could be established from the
// presented credential.
var ErrUnauthenticated = fmt.Errorf("auth: %w", httpx.ErrUnauthorized)

// UserClaims is the user record embedded in every issued token.
type UserClaims struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	TargetCalories *int   `json:"targetCalories,omitempty"`
	AuthLevel      string `json:"authLevel"`
}

// Claims represents JWT claims.
type Claims struct {
	User *UserClaims `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager handles JWT token creation and validation.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager signing HS256 tokens valid for ttl.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: jwt ttl must be positive")
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token embedding the user record.
func (m *TokenManager) Issue(user *User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("auth: issue token: user required")
	}
	now := m.now()
	claims := &Claims{
		User: &UserClaims{
			ID:             user.ID,
			Email:          user.Email,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
			TargetCalories: user.TargetCalories,
			AuthLevel:      user.Role.String(),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify validates token and returns the principal embedded in it. Every
// failure, including a panic while decoding, yields ErrUnauthenticated.
func (m *TokenManager) Verify(token string) (principal rbac.Principal, err error) {
	defer func() {
		if r := recover(); r != nil {
			principal = rbac.Principal{}
			err = fmt.Errorf("%w: decode token: %v", ErrUnauthenticated, r)
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return rbac.Principal{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return rbac.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return rbac.Principal{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	if claims.User == nil {
		return rbac.Principal{}, fmt.Errorf("%w: token carries no user", ErrUnauthenticated)
	}

	role, err := rbac.ParseRole(claims.User.AuthLevel)
	if err != nil {
		return rbac.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	principal = rbac.Principal{ID: claims.User.ID, Role: role}
	if !principal.Valid() {
		return rbac.Principal{}, fmt.Errorf("%w: token carries no user id", ErrUnauthenticated)
	}
	return principal, nil
}
