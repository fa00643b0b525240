package services

import (
	"errors"
	"strings"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/internal/utils"
	"github.com/memeet/scheduler/pkg/logger"
	"github.com/memeet/scheduler/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	ldapRole    string
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapCfg *config.LDAPConfig) *AuthService {
	role := ldapCfg.DefaultRole
	if !models.IsValidRole(role) {
		role = models.RoleClient
	}
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(ldapCfg),
		jwtConfig:   jwtCfg,
		ldapRole:    role,
	}
}

type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,user_role"`
	Phone    string `json:"phone" binding:"omitempty,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type" binding:"omitempty,oneof=local ldap"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResult is a freshly issued token pair.
type AuthResult struct {
	AccessToken     string       `json:"token"`
	AccessExpireAt  time.Time    `json:"expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user,omitempty"`
}

// Register creates a local account with the empty profile of its role and
// signs it in.
func (s *AuthService) Register(req *RegisterRequest, clientIP, userAgent string) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if !models.IsValidRole(req.Role) {
		return nil, response.NewBadRequest("role must be freelancer or client")
	}
	if len(req.Password) < 6 {
		return nil, response.NewBadRequest("password must be at least 6 characters")
	}
	fullName := strings.TrimSpace(req.FullName)
	if len(fullName) < 2 {
		return nil, response.NewBadRequest("full name must be at least 2 characters")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, response.NewServerError("failed to register user", err)
	}
	if count > 0 {
		return nil, response.NewBadRequest("user already exists")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, response.NewServerError("failed to register user", err)
	}

	user := models.User{
		FullName: fullName,
		Email:    email,
		Password: hashed,
		Role:     req.Role,
		Phone:    strings.TrimSpace(req.Phone),
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return createEmptyProfile(tx, &user)
	}); err != nil {
		logger.Error().Err(err).Str("email", email).Msg("[Auth] register failed")
		return nil, response.NewServerError("failed to register user", err)
	}

	return s.issue(&user, clientIP, userAgent)
}

// Login authenticates a user and returns a token pair
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*AuthResult, error) {
	var user *models.User
	var err error

	switch req.AuthType {
	case "", models.AuthTypeLocal:
		user, err = s.localAuth(normalizeEmail(req.Email), req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(normalizeEmail(req.Email), req.Password)
	default:
		return nil, response.NewBadRequest("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Model(user).Update("last_login", now).Error; err != nil {
		logger.Warnf("[Auth] failed to record last login for user %d: %v", user.ID, err)
	}

	return s.issue(user, clientIP, userAgent)
}

// Refresh rotates the refresh token: the presented one is revoked and
// replaced by a new pair.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, response.NewUnauthorized("refresh token required")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", utils.HashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, response.NewServerError("failed to refresh token", err)
	}

	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("user not found")
		}
		return nil, response.NewServerError("failed to refresh token", err)
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	accessToken, accessExpireAt, err := s.accessToken(&user)
	if err != nil {
		return nil, response.NewServerError("failed to issue token", err)
	}

	newToken, newHash, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, response.NewServerError("failed to issue token", err)
	}

	now := time.Now().UTC()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newHash,
		ExpiresAt:   now.Add(time.Duration(s.jwtConfig.RefreshExpireHour) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		// guard on revoked_at so a token can only be rotated once
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		return nil
	}); err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, response.NewServerError("failed to refresh token", err)
	}

	return &AuthResult{
		AccessToken:     accessToken,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    newToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

// RevokeRefreshToken ends a session. Unknown tokens are ignored.
func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error; err != nil {
		return response.NewServerError("failed to revoke token", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, response.NewServerError("failed to load user", err)
	}
	return &user, nil
}

// IsActiveUser reports whether the subject of a token may still act.
func (s *AuthService) IsActiveUser(userID uint) (bool, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ? AND is_active = ?", userID, true).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

func (s *AuthService) issue(user *models.User, clientIP, userAgent string) (*AuthResult, error) {
	accessToken, accessExpireAt, err := s.accessToken(user)
	if err != nil {
		return nil, response.NewServerError("failed to issue token", err)
	}

	refreshToken, refreshHash, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, response.NewServerError("failed to issue token", err)
	}

	refreshRecord := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   time.Now().UTC().Add(time.Duration(s.jwtConfig.RefreshExpireHour) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := s.db.Create(&refreshRecord).Error; err != nil {
		return nil, response.NewServerError("failed to issue token", err)
	}

	return &AuthResult{
		AccessToken:     accessToken,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshRecord.ExpiresAt,
		User:            user,
	}, nil
}

func (s *AuthService) accessToken(user *models.User) (string, time.Time, error) {
	hours := s.jwtConfig.ExpireHour
	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, hours)
	return token, time.Now().Add(time.Duration(hours) * time.Hour), err
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND auth_type = ?", email, models.AuthTypeLocal).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid credentials")
		}
		return nil, response.NewServerError("failed to log in", err)
	}

	if !utils.CheckPassword(password, user.Password) {
		return nil, response.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	return &user, nil
}

// ldapAuth verifies against the directory and provisions a local record on
// first login.
func (s *AuthService) ldapAuth(email, password string) (*models.User, error) {
	if !s.ldapService.IsEnabled() {
		return nil, response.NewBadRequest("LDAP login is not enabled")
	}

	ldapUser, err := s.ldapService.Authenticate(email, password)
	if err != nil {
		logger.Warnf("[Auth] LDAP authentication failed for %s: %v", email, err)
		return nil, response.NewUnauthorized("invalid credentials")
	}

	var user models.User
	err = s.db.Where("email = ?", normalizeEmail(ldapUser.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			FullName: ldapUser.FullName,
			Email:    normalizeEmail(ldapUser.Email),
			Role:     s.ldapRole,
			AuthType: models.AuthTypeLDAP,
			IsActive: true,
		}
		if user.FullName == "" {
			user.FullName = user.Email
		}
		if err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			return createEmptyProfile(tx, &user)
		}); err != nil {
			return nil, response.NewServerError("failed to provision user", err)
		}
	} else if err != nil {
		return nil, response.NewServerError("failed to log in", err)
	}

	if user.AuthType != models.AuthTypeLDAP {
		return nil, response.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	return &user, nil
}

func createEmptyProfile(tx *gorm.DB, user *models.User) error {
	switch user.Role {
	case models.RoleFreelancer:
		return tx.Create(&models.FreelancerProfile{UserID: user.ID}).Error
	case models.RoleClient:
		return tx.Create(&models.ClientProfile{UserID: user.ID}).Error
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
