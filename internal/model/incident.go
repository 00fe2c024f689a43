package model

import "time"

// IncidentStatus 疏散事件状态
type IncidentStatus string

const (
	IncidentActive IncidentStatus = "active"
	IncidentEnded  IncidentStatus = "ended"
)

// Incident 疏散事件表 — 对应 incidents
// 同一舍堂至多一个 active（部分唯一索引 uq_incidents_active_residence）
type Incident struct {
	IncidentID  string         `gorm:"type:uuid;primaryKey"                         json:"incident_id"`
	ResidenceID string         `gorm:"type:uuid;not null;index"                       json:"residence_id"`
	Status      IncidentStatus `gorm:"type:varchar(10);not null;default:'active'"     json:"status"`
	StartedAt   time.Time      `gorm:"not null"                                       json:"started_at"`
	StartedBy   string         `gorm:"type:varchar(128);not null"                     json:"started_by"`
	EndedAt     *time.Time     `                                                      json:"ended_at,omitempty"`
	EndedBy     *string        `gorm:"type:varchar(128)"                              json:"ended_by,omitempty"`
}

// TableName 指定表名
func (Incident) TableName() string { return "incidents" }

// IsActive 是否进行中
func (i *Incident) IsActive() bool { return i.Status == IncidentActive }
