package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-server/internal/apperr"
	"chat-server/internal/models"
	"chat-server/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and verifies bearer credentials. Verification yields
// a stable account identity; everything downstream trusts only that.
type AuthService struct {
	users  store.UserStore
	secret []byte
}

func NewAuthService(users store.UserStore, secret string) *AuthService {
	return &AuthService{users: users, secret: []byte(secret)}
}

// Identity is the result of verifying a credential.
type Identity struct {
	UserID   string
	Username string
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 {
		return nil, apperr.New(apperr.ErrInvalidInput, "username and a password of at least 6 characters are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, req.Username, string(hash))
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid credentials")
	}

	token, err := s.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token:        token,
		RefreshToken: refresh,
		Username:     user.Username,
		UserID:       user.ID,
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(refreshToken string) (*models.AuthResponse, error) {
	identity, err := s.verify(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(identity.UserID, identity.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.GenerateRefreshToken(identity.UserID, identity.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token:        token,
		RefreshToken: refresh,
		Username:     identity.Username,
		UserID:       identity.UserID,
	}, nil
}

func (s *AuthService) GenerateToken(userID, username string) (string, error) {
	return s.sign(userID, username, "access", 72*time.Hour)
}

func (s *AuthService) GenerateRefreshToken(userID, username string) (string, error) {
	return s.sign(userID, username, "refresh", 30*24*time.Hour)
}

func (s *AuthService) sign(userID, username, use string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"use":      use,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates an access token and returns the identity it carries.
func (s *AuthService) Verify(tokenString string) (*Identity, error) {
	return s.verify(tokenString, "access")
}

func (s *AuthService) verify(tokenString, use string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.ErrUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.New(apperr.ErrUnauthorized, "Invalid token")
	}
	if u, _ := claims["use"].(string); u != use {
		return nil, apperr.New(apperr.ErrUnauthorized, "Invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Invalid token claims")
	}
	username, _ := claims["username"].(string)

	return &Identity{UserID: userID, Username: username}, nil
}
