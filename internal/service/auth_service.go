package service

import (
	"strings"
	"time"

	"github.com/pixelmart/internal/config"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTExpireHours = 24

// AuthService 认证服务。账号由 seed 或运营后台预置，这里只做校验与签发。
type AuthService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.Config, userRepo repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AdminJWTClaims 管理端 JWT 声明
type AdminJWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login 用户登录，签发用户侧 Token
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	user, err := s.verifyCredentials(email, password)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.GenerateUserJWT(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// AdminLogin 管理端登录，要求账号具备管理标记
func (s *AuthService) AdminLogin(email, password string) (*LoginResult, error) {
	user, err := s.verifyCredentials(email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, ErrNotAdmin
	}
	token, expiresAt, err := s.GenerateAdminJWT(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) verifyCredentials(email, password string) (*models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, ErrCredentialsInvalid
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrCredentialsInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrCredentialsInvalid
	}
	return user, nil
}

// GenerateUserJWT 生成用户 JWT Token
func (s *AuthService) GenerateUserJWT(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(resolveExpireHours(s.cfg.UserJWT)) * time.Hour)
	claims := UserJWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.UserJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// GenerateAdminJWT 生成管理端 JWT Token
func (s *AuthService) GenerateAdminJWT(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(resolveExpireHours(s.cfg.JWT)) * time.Hour)
	claims := AdminJWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func resolveExpireHours(cfg config.JWTConfig) int {
	if cfg.ExpireHours > 0 {
		return cfg.ExpireHours
	}
	return defaultJWTExpireHours
}
