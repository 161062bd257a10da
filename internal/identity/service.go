// Package identity handles account creation, credential checks and the
// signed tokens that authenticate HTTP and WebSocket traffic.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatme-app/chatme/internal/domain"
)

// Verifier resolves a bearer token to a user ID. Middleware depends on
// this rather than the full service.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Service issues and verifies tokens and manages credentials.
type Service struct {
	users    domain.UserRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service signing tokens with the given secret.
func New(users domain.UserRepository, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   slog.Default().With("service", "identity"),
		now:      time.Now,
	}
}

// SignUp registers a new account. The email must be unused;
// domain.ErrAlreadyExists otherwise.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:         uuid.NewString(),
		Name:       name,
		SearchName: domain.NormalizeSearchName(name),
		Email:      email,
		Password:   string(hash),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", created.ID)
	return created, nil
}

// SignIn checks the credentials and returns the user together with a fresh
// token. Wrong email and wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueToken mints a token for an existing user, e.g. for seed tooling.
func (s *Service) IssueToken(userID string) (string, error) {
	return s.issueToken(userID)
}

func (s *Service) issueToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token and returns the user ID it was
// issued for. Any failure maps to domain.ErrUnauthorized; callers never see
// parser internals.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}

	// The account may have been deleted since the token was issued.
	if _, err := s.users.FindByID(ctx, claims.Subject); err != nil {
		return "", domain.ErrUnauthorized
	}
	return claims.Subject, nil
}
