package model

import "time"

// AuditAction 审计动作
type AuditAction string

const (
	AuditStartIncident AuditAction = "start_incident"
	AuditEndIncident   AuditAction = "end_incident"
	AuditManualCheckin AuditAction = "manual_checkin"
)

// AuditLog 审计日志表 — 对应 audit_logs（只追加）
// 排序：created_at 升序，同一时刻按自增主键
type AuditLog struct {
	AuditLogID      int64       `gorm:"primaryKey;autoIncrement"   json:"audit_log_id"`
	IncidentID      string      `gorm:"type:uuid;not null;index"   json:"incident_id"`
	ActorID         string      `gorm:"type:varchar(128);not null" json:"actor_id"`
	ActorStudentID  string      `gorm:"type:varchar(20)"           json:"actor_student_id,omitempty"`
	Action          AuditAction `gorm:"type:varchar(20);not null"  json:"action"`
	TargetUserID    *string     `gorm:"type:varchar(128)"          json:"target_user_id,omitempty"`
	TargetStudentID *string     `gorm:"type:varchar(20)"           json:"target_student_id,omitempty"`
	Reason          *string     `gorm:"type:text"                  json:"reason,omitempty"`
	CreatedAt       time.Time   `gorm:"not null"                   json:"created_at"`
}

// TableName 指定表名
func (AuditLog) TableName() string { return "audit_logs" }
