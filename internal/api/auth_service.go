package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/errs"
	"github.com/addonhub/addonhub/internal/models"
)

// AuthService handles admin authentication for the task API.
type AuthService struct {
	db     *gorm.DB
	secret []byte
	logger zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB, jwtSecret string, logger zerolog.Logger) *AuthService {
	return &AuthService{
		db:     db,
		secret: []byte(jwtSecret),
		logger: logger,
	}
}

// EnsureAdminUser creates the bootstrap admin account if it does not
// exist yet. Called once at startup from configuration.
func (s *AuthService) EnsureAdminUser(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.WrapDatabaseError("look up admin user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        email,
		Username:     "admin",
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		return errs.WrapDatabaseError("create admin user", err)
	}

	s.logger.Info().Str("email", email).Msg("Created bootstrap admin user")
	return nil
}

// Login verifies credentials and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errs.WrapValidationError("email", "invalid credentials")
		}
		return "", errs.WrapDatabaseError("look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errs.WrapValidationError("password", "invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses a JWT and returns the authenticated user id.
func (s *AuthService) ValidateToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, jwt.ErrTokenInvalidClaims
	}

	return uint(userID), nil
}
