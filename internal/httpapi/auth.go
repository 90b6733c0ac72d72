package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/edigar/sales-control/internal/domain"
)

var ErrInvalidCredentials = errors.New("credentials are invalid")

const tokenIssuer = "sales-control"

type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AuthManager issues and verifies HS256 access tokens for administrators.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserLookup
	now      func() time.Time
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	UserID int64 `json:"uid"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users UserLookup) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AuthManager{secret: []byte(secret), tokenTTL: tokenTTL, users: users, now: time.Now}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := a.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil || user == nil {
		// Same answer for unknown email and wrong password.
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	return a.issue(domain.Actor{UserID: user.ID, Email: user.Email})
}

// Refresh issues a fresh token for an actor holding a valid one.
func (a *AuthManager) Refresh(actor domain.Actor) (domain.LoginResponse, error) {
	return a.issue(actor)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.UserID < 1 {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: claims.UserID, Email: sub}, nil
}

func (a *AuthManager) issue(actor domain.Actor) (domain.LoginResponse, error) {
	now := a.now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Email,
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.tokenTTL)),
			Issuer:    tokenIssuer,
		},
		UserID: actor.UserID,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(a.tokenTTL / time.Second),
	}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
