package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// AuditAction 审计动作
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
	AuditActionLogin  = "LOGIN"
)

// AuditLog 审计日志，只增不改，仅记录成功的变更
type AuditLog struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID     string    `json:"user_id" gorm:"size:64;index"`
	Username   string    `json:"username" gorm:"size:100"`
	Action     string    `json:"action" gorm:"size:20;not null;index:idx_audit_entity"`
	EntityType string    `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"`
	EntityID   string    `json:"entity_id" gorm:"size:64;index"`
	OldValues  JSONB     `json:"old_values" gorm:"type:jsonb"`
	NewValues  JSONB     `json:"new_values" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "mrp_audit_logs"
}
