// internal/domain/identity/service.go
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/pkg/auth"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong passwords alike
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service handles sign-in and sign-out and publishes the corresponding
// transitions on the bus. The cart synchronizer reacts to those events; the
// service itself knows nothing about carts.
type Service struct {
	db        *gorm.DB
	config    *config.Config
	bus       *Bus
	jwt       *auth.JWTManager
	passwords *auth.PasswordManager
	log       *logrus.Entry
}

// NewService creates a new identity service
func NewService(db *gorm.DB, cfg *config.Config, bus *Bus, log *logrus.Logger) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		bus:       bus,
		jwt:       auth.NewJWTManager(cfg),
		passwords: auth.NewPasswordManager(cfg),
		log:       log.WithField("component", "identity"),
	}
}

// LoginResult carries the issued token and account
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Login verifies credentials, issues an access token, and publishes the
// sign-in transition carrying the anonymous session token being left behind.
func (s *Service) Login(ctx context.Context, email, password, sessionToken string) (*LoginResult, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.passwords.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID}).Info("user signed in")

	userID := user.ID
	s.bus.Publish(Transition{
		Type:         TransitionSignIn,
		UserID:       &userID,
		SessionToken: sessionToken,
	})

	return &LoginResult{Token: token, User: &user}, nil
}

// Logout publishes the sign-out transition. Token invalidation is left to
// expiry; the transition is what downstream state cares about.
func (s *Service) Logout(ctx context.Context, userID uint, sessionToken string) {
	s.log.WithField("user_id", userID).Info("user signed out")

	id := userID
	s.bus.Publish(Transition{
		Type:         TransitionSignOut,
		UserID:       &id,
		SessionToken: sessionToken,
	})
}

// Register creates a new account
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// AnnounceReady publishes the startup transition once initialization is done
func (s *Service) AnnounceReady(userID *uint, sessionToken string) {
	s.bus.Publish(Transition{
		Type:         TransitionStartup,
		UserID:       userID,
		SessionToken: sessionToken,
	})
}
