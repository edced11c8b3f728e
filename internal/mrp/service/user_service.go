package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// UserService 用户管理
type UserService struct {
	repo  *repository.UserRepository
	audit *AuditService
}

func NewUserService(repo *repository.UserRepository, audit *AuditService) *UserService {
	return &UserService{repo: repo, audit: audit}
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

// UpdateUserRequest 更新用户请求
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func (s *UserService) List(ctx context.Context, role, status string, page, size int) ([]entity.User, int64, error) {
	return s.repo.List(ctx, role, status, page, size)
}

func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *UserService) Create(ctx context.Context, operatorID string, req *CreateUserRequest) (*entity.User, error) {
	if !validRole(req.Role) {
		return nil, fmt.Errorf("%w: 未知角色 %s", ErrConflict, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &entity.User{
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Status:       entity.UserStatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	s.audit.Record(ctx, operatorID, entity.AuditActionCreate, "user", user.ID, nil, map[string]interface{}{
		"username": req.Username, "role": req.Role,
	})
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id, operatorID string, req *UpdateUserRequest) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := map[string]interface{}{"role": user.Role, "status": user.Status}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		if !validRole(*req.Role) {
			return nil, fmt.Errorf("%w: 未知角色 %s", ErrConflict, *req.Role)
		}
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户失败: %w", err)
	}

	s.audit.Record(ctx, operatorID, entity.AuditActionUpdate, "user", user.ID, old, map[string]interface{}{
		"role": user.Role, "status": user.Status,
	})
	return user, nil
}

// ChangePassword 本人修改密码
func (s *UserService) ChangePassword(ctx context.Context, id string, req *ChangePasswordRequest) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("更新密码失败: %w", err)
	}
	return nil
}

func (s *UserService) Delete(ctx context.Context, id, operatorID string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("删除用户失败: %w", err)
	}

	s.audit.Record(ctx, operatorID, entity.AuditActionDelete, "user", id, map[string]interface{}{
		"username": user.Username,
	}, nil)
	return nil
}

func validRole(role string) bool {
	switch role {
	case entity.RoleAdmin, entity.RolePlanner, entity.RoleViewer:
		return true
	}
	return false
}
