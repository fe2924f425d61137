// Package auth issues and validates the bearer tokens every connection and
// request presents. The gateway calls Authenticate once per websocket
// handshake; the REST middleware calls it per request.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pulse/backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken covers bad, expired, or malformed credentials.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInactiveAccount means the token was valid but the account no
	// longer is.
	ErrInactiveAccount = errors.New("account not found or inactive")
	// ErrInvalidCredentials is the single answer to any failed login,
	// whatever actually went wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the slice of the user store the service reads and writes.
type Store interface {
	SaveUser(user *models.User) error
	ActiveUser(id string) (*models.User, error)
	UserByEmail(email string) (*models.User, error)
}

type Service struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
}

func NewService(store Store, secret []byte, expiresIn time.Duration) *Service {
	return &Service{store: store, secret: secret, expiresIn: expiresIn}
}

// GenerateToken signs an HS256 bearer token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(s.expiresIn).Unix(),
		"iat":     time.Now().Unix(),
		"iss":     "pulse-api",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Authenticate resolves a bearer token to its active user. Both failure
// modes refuse the connection: a broken token and a deactivated account.
func (s *Service) Authenticate(tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.store.ActiveUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInactiveAccount
	}
	return user, nil
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(username, email, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, "", errors.New("username, email and password are required")
	}
	if len(password) < 8 {
		return nil, "", errors.New("password must be at least 8 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.store.SaveUser(user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(email, password string) (*models.User, string, error) {
	user, err := s.store.UserByEmail(strings.TrimSpace(email))
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.IsActive {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}
