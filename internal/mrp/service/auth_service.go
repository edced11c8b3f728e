package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bitfantasy/nimo-mrp/internal/config"
	"github.com/bitfantasy/nimo-mrp/internal/middleware"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// 角色到权限的映射。admin 用通配。
var rolePermissions = map[string][]string{
	entity.RoleAdmin:   {"*"},
	entity.RolePlanner: {"catalog:read", "catalog:write", "inventory:read", "inventory:write", "plan:read", "plan:write", "procurement:read", "procurement:write"},
	entity.RoleViewer:  {"catalog:read", "inventory:read", "plan:read", "procurement:read"},
}

// AuthService 认证。访问令牌为JWT，刷新令牌存Redis。
type AuthService struct {
	rdb      *redis.Client
	userRepo *repository.UserRepository
	cfg      *config.Config
	audit    *AuditService
	logger   *zap.Logger
}

func NewAuthService(rdb *redis.Client, userRepo *repository.UserRepository, cfg *config.Config, audit *AuditService, logger *zap.Logger) *AuthService {
	return &AuthService{rdb: rdb, userRepo: userRepo, cfg: cfg, audit: audit, logger: logger}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *entity.User `json:"user"`
}

func refreshKey(token string) string {
	return "mrp:refresh:" + token
}

// Login 用户名密码登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != entity.UserStatusActive {
		return nil, ErrUserDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("更新登录时间失败", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.audit.Record(ctx, user.ID, entity.AuditActionLogin, "user", user.ID, nil, map[string]interface{}{
		"username": user.Username,
	})
	return result, nil
}

// Refresh 刷新令牌换新令牌对，旧刷新令牌作废
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	userID, err := s.rdb.Get(ctx, refreshKey(refreshToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("读取刷新令牌失败: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status != entity.UserStatusActive {
		return nil, ErrUserDisabled
	}

	if err := s.rdb.Del(ctx, refreshKey(refreshToken)).Err(); err != nil {
		return nil, fmt.Errorf("作废刷新令牌失败: %w", err)
	}
	return s.issueTokens(ctx, user)
}

// Logout 注销，删除刷新令牌
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.rdb.Del(ctx, refreshKey(refreshToken)).Err()
}

func (s *AuthService) issueTokens(ctx context.Context, user *entity.User) (*LoginResult, error) {
	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("签发访问令牌失败: %w", err)
	}

	refreshToken := uuid.New().String()
	if err := s.rdb.Set(ctx, refreshKey(refreshToken), user.ID, s.cfg.JWT.RefreshTokenExpire).Err(); err != nil {
		return nil, fmt.Errorf("保存刷新令牌失败: %w", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
		User:         user,
	}, nil
}

// GenerateAccessToken 签发JWT访问令牌
func (s *AuthService) GenerateAccessToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := middleware.JWTClaims{
		UserID:      user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Roles:       []string{user.Role},
		Permissions: rolePermissions[user.Role],
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.JWT.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenExpire)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}
