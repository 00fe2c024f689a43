package model

import "time"

// AccessGrant 监督员授权表 — 对应 access_grants
// 存在即授权，撤销即删除，无过期时间
type AccessGrant struct {
	StudentID string    `gorm:"type:varchar(20);primaryKey"        json:"student_id"`
	GrantedBy string    `gorm:"type:varchar(128);not null"         json:"granted_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (AccessGrant) TableName() string { return "access_grants" }

// SupervisorAssignment 监督员负责舍堂 — 对应 supervisor_assignments
// 存在时覆盖监督员档案中的舍堂
type SupervisorAssignment struct {
	StudentID   string `gorm:"type:varchar(20);primaryKey" json:"student_id"`
	ResidenceID string `gorm:"type:uuid;not null"          json:"residence_id"`
	BaseModel
}

// TableName 指定表名
func (SupervisorAssignment) TableName() string { return "supervisor_assignments" }
