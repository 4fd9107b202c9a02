package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"membership-admin/internal/config"
	"membership-admin/internal/core/domain"
	"membership-admin/internal/pkg/jwt"
	"membership-admin/internal/pkg/password"

	"github.com/patrickmn/go-cache"
)

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
)

// AuthService authenticates the configured admin and issues access tokens
type AuthService struct {
	username     string
	passwordHash string
	cfg          *config.Config

	// signed-out tokens, kept until they would have expired anyway
	revoked *cache.Cache
}

// NewAuthService creates a new auth service. A plain ADMIN_PASSWORD is hashed once here.
func NewAuthService(cfg *config.Config) (*AuthService, error) {
	hash := cfg.Admin.PasswordHash
	if hash == "" {
		var err error
		hash, err = password.Hash(cfg.Admin.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	} else if !password.IsHash(hash) {
		return nil, errors.New("ADMIN_PASSWORD_HASH is not a bcrypt hash")
	}

	if cfg.Admin.Password != "" && !password.ValidatePassword(cfg.Admin.Password) {
		log.Println("⚠️ Admin password is shorter than 8 characters")
	}

	tokenTTL := time.Duration(cfg.JWT.AccessTokenMins) * time.Minute
	return &AuthService{
		username:     cfg.Admin.Username,
		passwordHash: hash,
		cfg:          cfg,
		revoked:      cache.New(tokenTTL, 10*time.Minute),
	}, nil
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminResponse describes the signed-in admin
type AdminResponse struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Admin       *AdminResponse `json:"admin"`
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Login authenticates the admin
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	// Always run bcrypt so a wrong username costs the same as a wrong password
	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(s.username)) == 1
	passOK := password.Verify(input.Password, s.passwordHash)
	if !userOK || !passOK {
		log.Printf("⚠️ Failed login attempt for %q", input.Username)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := jwt.GenerateAccessToken(s.username, string(domain.RoleAdmin), s.cfg.JWT.Secret, s.cfg.JWT.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Admin logged in: %s", s.username)

	return &AuthResponse{
		Admin:       &AdminResponse{Username: s.username, Role: domain.RoleAdmin},
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Logout revokes an access token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
	if err != nil {
		// expired or foreign tokens are already unusable
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	s.revoked.Set(accessToken, struct{}{}, ttl)

	log.Printf("✅ Admin logged out: %s", claims.Username)
	return nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if _, revoked := s.revoked.Get(accessToken); revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Me returns the admin described by claims
func (s *AuthService) Me(claims *jwt.Claims) *AdminResponse {
	return &AdminResponse{Username: claims.Username, Role: domain.Role(claims.Role)}
}
