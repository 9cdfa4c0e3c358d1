package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sangkips/quotation-api/internal/domain/entity"
	"github.com/sangkips/quotation-api/internal/domain/enum"
	"github.com/sangkips/quotation-api/internal/domain/repository"
	"github.com/sangkips/quotation-api/pkg/apperror"
	"github.com/sangkips/quotation-api/pkg/email"
	"github.com/sangkips/quotation-api/pkg/metrics"
	"github.com/sangkips/quotation-api/pkg/utils"
)

const otpDigits = 6

// AuthService handles authentication-related operations
type AuthService struct {
	userRepo   repository.UserRepository
	otpRepo    repository.OTPRepository
	jwtManager *utils.JWTManager
	mailer     email.Sender
	metrics    *metrics.Metrics
	log        zerolog.Logger
	otpTTL     time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repository.UserRepository,
	otpRepo repository.OTPRepository,
	jwtManager *utils.JWTManager,
	mailer email.Sender,
	otpTTL time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		otpRepo:    otpRepo,
		jwtManager: jwtManager,
		mailer:     mailer,
		metrics:    m,
		log:        log.With().Str("service", "auth").Logger(),
		otpTTL:     otpTTL,
	}
}

// LoginInput represents the login input
type LoginInput struct {
	Email    string
	Password string
}

// LoginOutput represents the login output
type LoginOutput struct {
	User         *entity.User
	AccessToken  string
	RefreshToken string
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(input.Password, user.Password) {
		return nil, apperror.ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

// RegisterInput represents the registration input
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a new user account and signs it in
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*LoginOutput, error) {
	addr := normalizeEmail(input.Email)

	existingUser, err := s.userRepo.GetByEmail(ctx, addr)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, apperror.NewConflictError("Email already registered")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    addr,
		Password: hashedPassword,
		Role:     enum.RoleUser,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return s.issueTokens(user)
}

// RefreshToken rotates a refresh token. Each refresh token is accepted once.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*LoginOutput, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}

	fresh, err := s.otpRepo.ConsumeToken(ctx, claims.ID, s.jwtManager.RefreshTokenExpiry())
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, apperror.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrInvalidToken
	}

	return s.issueTokens(user)
}

// Logout revokes a refresh token. Unknown or expired tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	_, err = s.otpRepo.ConsumeToken(ctx, claims.ID, s.jwtManager.RefreshTokenExpiry())
	return err
}

// GetCurrentUser returns the current user by ID
func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NewNotFoundError("User")
	}
	return user, nil
}

// ChangePasswordInput represents the change password input
type ChangePasswordInput struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
}

// ChangePassword changes the user's password
func (s *AuthService) ChangePassword(ctx context.Context, input *ChangePasswordInput) error {
	user, err := s.GetCurrentUser(ctx, input.UserID)
	if err != nil {
		return err
	}

	if !utils.CheckPasswordHash(input.CurrentPassword, user.Password) {
		return apperror.NewBadRequestError("Current password is incorrect")
	}

	hashedPassword, err := utils.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword)
}

// SendOTP emails a one-time code to a registered address. The result is the
// same whether or not the address belongs to an account.
func (s *AuthService) SendOTP(ctx context.Context, address string) error {
	addr := normalizeEmail(address)

	user, err := s.userRepo.GetByEmail(ctx, addr)
	if err != nil {
		return err
	}
	if user == nil {
		s.metrics.OTP("unknown_email")
		s.log.Debug().Msg("otp requested for unknown email")
		return nil
	}

	code, err := utils.GenerateOTP(otpDigits)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(code)
	if err != nil {
		return err
	}
	if err := s.otpRepo.Save(ctx, addr, hash); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetOTP(ctx, addr, code, s.otpTTL); err != nil {
		s.metrics.OTP("send_failed")
		return err
	}

	s.metrics.OTP("sent")
	s.log.Info().Str("user_id", user.ID.String()).Msg("password reset otp sent")
	return nil
}

// VerifyOTPInput represents the verify otp input
type VerifyOTPInput struct {
	Email string
	OTP   string
}

// VerifyOTP checks a pending code and trades it for a short-lived reset token
func (s *AuthService) VerifyOTP(ctx context.Context, input *VerifyOTPInput) (string, error) {
	addr := normalizeEmail(input.Email)

	err := s.otpRepo.Verify(ctx, addr, func(hash string) bool {
		return utils.CheckPasswordHash(strings.TrimSpace(input.OTP), hash)
	})
	switch {
	case errors.Is(err, repository.ErrOTPAttemptsExceeded):
		s.metrics.OTP("locked")
		return "", apperror.ErrTooManyAttempts
	case errors.Is(err, repository.ErrOTPNotFound), errors.Is(err, repository.ErrOTPMismatch):
		s.metrics.OTP("rejected")
		return "", apperror.ErrInvalidOTP
	case err != nil:
		return "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, addr)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperror.ErrInvalidOTP
	}

	s.metrics.OTP("verified")
	return s.jwtManager.GeneratePasswordResetToken(user.ID, user.Email)
}

// ResetPassword sets a new password using a reset token from VerifyOTP.
// A reset token works once.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.jwtManager.ValidatePasswordResetToken(resetToken)
	if err != nil {
		return tokenError(err)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user == nil || !strings.EqualFold(user.Email, claims.Email) {
		return apperror.ErrInvalidToken
	}

	fresh, err := s.otpRepo.ConsumeToken(ctx, claims.ID, s.jwtManager.ResetTokenExpiry())
	if err != nil {
		return err
	}
	if !fresh {
		return apperror.ErrInvalidToken
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("password reset")
	return nil
}

func (s *AuthService) issueTokens(user *entity.User) (*LoginOutput, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role.String())
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperror.ErrTokenExpired
	}
	return apperror.ErrInvalidToken
}
