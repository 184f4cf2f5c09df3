package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/eyetask/driverhub/internal/models"
)

// AuthRepository defines the persistence operations required by the
// authentication service.
type AuthRepository interface {
	// GetByUsername fetches a user by login name.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
	// Role is the user's role at token issue time.
	Role models.Role `json:"role"`
}

// AuthService issues and verifies bearer tokens for password logins.
type AuthService struct {
	repo   AuthRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService constructs an AuthService. secret signs HS256 tokens and
// ttl bounds their lifetime.
func NewAuthService(repo AuthRepository, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{repo: repo, secret: secret, ttl: ttl, now: time.Now}
}

// Login verifies the password for username and returns a signed bearer
// token together with the user. Wrong username or password both map to
// ErrUnauthorized so callers cannot distinguish them.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("%w: missing credentials", ErrInvalid)
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrUnauthorized
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: user.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// ParseToken verifies a bearer token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash for a plaintext password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
