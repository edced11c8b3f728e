package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
)

// AuditService 审计日志。写入失败只记日志，不影响业务操作。
type AuditService struct {
	repo     *repository.AuditLogRepository
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewAuditService(repo *repository.AuditLogRepository, userRepo *repository.UserRepository, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, userRepo: userRepo, logger: logger}
}

// Record 记录一次成功的变更
func (s *AuditService) Record(ctx context.Context, userID, action, entityType, entityID string, oldValues, newValues map[string]interface{}) {
	log := &entity.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  entity.JSONB(oldValues),
		NewValues:  entity.JSONB(newValues),
	}
	if userID != "" {
		if user, err := s.userRepo.FindByID(ctx, userID); err == nil {
			log.Username = user.Username
		}
	}
	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Warn("审计日志写入失败",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// List 审计日志查询
func (s *AuditService) List(ctx context.Context, params repository.AuditLogListParams) ([]entity.AuditLog, int64, error) {
	return s.repo.List(ctx, params)
}
