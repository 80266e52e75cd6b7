package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const MinPasswordLength = 6

type AuthService struct {
	users      store.Users
	otps       store.OTPs
	tokens     *utils.JWTManager
	mailer     *utils.Mailer
	production bool
	log        logrus.FieldLogger
	now        func() time.Time
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.UserRole
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(s *store.Store, tokens *utils.JWTManager, mailer *utils.Mailer, production bool, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:      s.Users,
		otps:       s.OTPs,
		tokens:     tokens,
		mailer:     mailer,
		production: production,
		log:        log,
		now:        time.Now,
	}
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperr.Internal("failed to generate token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = utils.NormalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" {
		return nil, apperr.Validation("name and email are required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if in.Role != models.UserRoleOwner && in.Role != models.UserRoleSeeker {
		return nil, apperr.Validation("role must be owner or seeker")
	}

	user := &models.User{Name: in.Name, Email: in.Email, Role: in.Role}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	switch err := s.users.CreateUser(ctx, user); {
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.Duplicate("Email is already registered")
	case err != nil:
		return nil, apperr.Internal("failed to create user", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Authentication("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if err := user.CheckPassword(password); err != nil {
		return nil, apperr.Authentication("Invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return user, nil
}

// RequestPasswordReset issues a one-time code and mails it. Without a mail
// server outside production the code is logged instead.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return apperr.Internal("failed to load user", err)
	}

	code := utils.GenerateOTP(fmt.Sprintf("%s-reset-%s", user.Email, uuid.NewString()))
	otp := &models.OTP{
		UserID:    user.ID,
		Code:      code,
		Type:      models.OTPTypePasswordReset,
		ExpiresAt: s.now().Add(utils.OTPExpiration),
	}
	if err := s.otps.CreateOTP(ctx, otp); err != nil {
		return apperr.Internal("failed to generate reset code", err)
	}

	if !s.mailer.Configured() && !s.production {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "otp": code}).Warn("email not configured, password reset code logged")
		return nil
	}
	if err := s.mailer.SendPasswordResetEmail(user.Email, code); err != nil {
		return apperr.Internal("failed to send reset email", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	user, err := s.users.GetUserByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Validation("Invalid or expired code")
	}
	if err != nil {
		return apperr.Internal("failed to load user", err)
	}

	switch err := s.otps.ConsumeOTP(ctx, user.ID, strings.TrimSpace(code), models.OTPTypePasswordReset, s.now()); {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Validation("Invalid or expired code")
	case err != nil:
		return apperr.Internal("failed to verify code", err)
	}

	if err := user.SetPassword(newPassword); err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, user.PasswordHash); err != nil {
		return apperr.Internal("failed to update password", err)
	}
	s.log.WithField("user_id", user.ID).Info("password reset")
	return nil
}

// SetDeviceToken stores the FCM token used for push notifications. An empty
// token removes it.
func (s *AuthService) SetDeviceToken(ctx context.Context, userID uint, token string) error {
	switch err := s.users.SetFCMToken(ctx, userID, strings.TrimSpace(token)); {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("User not found")
	case err != nil:
		return apperr.Internal("failed to save device token", err)
	}
	return nil
}
