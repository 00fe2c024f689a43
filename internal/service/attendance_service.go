package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/geo"
	"nus-fire-evac/backend/pkg/metrics"
)

// ── 签到模块业务错误 ──

var (
	ErrNoActiveIncident        = errors.New("当前没有进行中的疏散事件")
	ErrCheckpointNotConfigured = errors.New("该舍堂尚未设置集合点，暂无法 GPS 签到")
	ErrOutsideGeofence         = errors.New("不在集合点范围内")
	ErrAlreadyAccounted        = errors.New("该住户已签到")
	ErrEmptyReason             = errors.New("人工签到必须填写原因")
	ErrPersonNotInRoster       = errors.New("该用户不在本舍堂名单中")
	ErrInvalidFix              = errors.New("定位数据无效")
	ErrAttendanceNotFound      = errors.New("尚未签到")
)

// OutsideGeofenceError 携带距离与半径，errors.Is(err, ErrOutsideGeofence) 成立
type OutsideGeofenceError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutsideGeofenceError) Error() string {
	return fmt.Sprintf("距离集合点 %s，需在 %s 范围内签到",
		geo.FormatDistance(e.DistanceMeters), geo.FormatDistance(e.RadiusMeters))
}

// Is 匹配 ErrOutsideGeofence
func (e *OutsideGeofenceError) Is(target error) bool { return target == ErrOutsideGeofence }

// 签到结果（metrics 标签）
const (
	outcomeCreated  = "created"
	outcomeExisting = "existing"
	outcomeRejected = "rejected"
)

// AttendanceService 签到与名单核对
type AttendanceService interface {
	SubmitGpsCheckin(ctx context.Context, incidentID string, actor *Identity, fix geo.Fix) (*dto.CheckinResponse, error)
	SubmitManualCheckin(ctx context.Context, incidentID, targetUserID string, actor *Identity, reason string) (*dto.CheckinResponse, error)
	GetMine(ctx context.Context, incidentID string, actor *Identity) (*dto.AttendanceRecordResponse, error)
	Status(ctx context.Context, incidentID string, actor *Identity, q *dto.StatusQuery) (*dto.RosterStatusResponse, error)
}

type attendanceService struct {
	repo    *repository.Repository
	roles   RoleService
	metrics *metrics.Metrics
	notifier
	logger *zap.Logger
	now    func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	repo *repository.Repository,
	roles RoleService,
	hub realtime.Hub,
	m *metrics.Metrics,
	logger *zap.Logger,
) AttendanceService {
	return &attendanceService{
		repo:     repo,
		roles:    roles,
		metrics:  m,
		notifier: notifier{hub: hub, logger: logger},
		logger:   logger,
		now:      nowUTC,
	}
}

// ────────────────────── GPS ──────────────────────

func (s *attendanceService) SubmitGpsCheckin(ctx context.Context, incidentID string, actor *Identity, fix geo.Fix) (*dto.CheckinResponse, error) {
	// 1. 定位数据校验
	if err := fix.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFix, err)
	}

	// 2. 事件必须进行中
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, err
	}
	if !inc.IsActive() {
		return nil, ErrNoActiveIncident
	}
	if !actor.BelongsTo(inc.ResidenceID) {
		return nil, ErrPersonNotInRoster
	}

	// 3. 围栏判定
	cp, err := s.repo.Checkpoint.GetByResidence(ctx, inc.ResidenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCheckpointNotConfigured
		}
		s.logger.Error("查询集合点失败", zap.String("residence_id", inc.ResidenceID), zap.Error(err))
		return nil, err
	}
	fence := cp.Fence()
	if distance := geo.DistanceMeters(fix.Point, fence.Center); distance > fence.RadiusMeters {
		s.metrics.Checkin(string(model.MethodGPS), outcomeRejected)
		return nil, &OutsideGeofenceError{DistanceMeters: distance, RadiusMeters: fence.RadiusMeters}
	}

	// 4. 事务内复核状态并条件写入
	lat, lng, acc := fix.Latitude, fix.Longitude, fix.AccuracyMeters
	record := &model.AttendanceRecord{
		IncidentID:     incidentID,
		UserID:         actor.UserID(),
		StudentID:      actor.StudentID(),
		AccountedAt:    s.now(),
		Method:         model.MethodGPS,
		Latitude:       &lat,
		Longitude:      &lng,
		AccuracyMeters: &acc,
	}
	if !fix.Timestamp.IsZero() {
		fixAt := fix.Timestamp.UTC()
		record.FixAt = &fixAt
	}

	var (
		saved   *model.AttendanceRecord
		created bool
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := ensureActive(ctx, tx, incidentID); err != nil {
			return err
		}
		saved, created, err = tx.Attendance.CreateIfAbsent(ctx, record)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNoActiveIncident) {
			s.logger.Error("GPS 签到写入失败", zap.String("incident_id", incidentID), zap.Error(err))
		}
		return nil, err
	}

	resp := toAttendanceResponse(saved)
	if created {
		s.metrics.Checkin(string(model.MethodGPS), outcomeCreated)
		s.publish(ctx, realtime.AttendanceTopic(incidentID), realtime.TypeAttendance, saved.UserID, 1, resp)
	} else {
		s.metrics.Checkin(string(model.MethodGPS), outcomeExisting)
	}
	return &dto.CheckinResponse{Created: created, Record: *resp}, nil
}

// ────────────────────── Manual ──────────────────────

func (s *attendanceService) SubmitManualCheckin(ctx context.Context, incidentID, targetUserID string, actor *Identity, reason string) (*dto.CheckinResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanOversee(inc.ResidenceID) {
		return nil, ErrResidenceForbidden
	}
	if !inc.IsActive() {
		return nil, ErrNoActiveIncident
	}

	// 目标必须在名单中：同舍堂且有效角色为 resident
	target, err := s.repo.User.GetByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotInRoster
		}
		s.logger.Error("查询签到对象失败", zap.String("user_id", targetUserID), zap.Error(err))
		return nil, err
	}
	if target.ResidenceID != inc.ResidenceID {
		return nil, ErrPersonNotInRoster
	}
	role, err := s.roles.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	if role != model.RoleResident {
		return nil, ErrPersonNotInRoster
	}

	now := s.now()
	actorID := actor.UserID()
	record := &model.AttendanceRecord{
		IncidentID:   incidentID,
		UserID:       target.UserID,
		StudentID:    target.StudentID,
		AccountedAt:  now,
		Method:       model.MethodManual,
		AccountedBy:  &actorID,
		ManualReason: &reason,
	}

	var saved *model.AttendanceRecord
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := ensureActive(ctx, tx, incidentID); err != nil {
			return err
		}
		rec, created, err := tx.Attendance.CreateIfAbsent(ctx, record)
		if err != nil {
			return err
		}
		if !created {
			return ErrAlreadyAccounted
		}
		saved = rec

		uid, sid := target.UserID, target.StudentID
		return tx.AuditLog.Append(ctx, &model.AuditLog{
			IncidentID:      incidentID,
			ActorID:         actorID,
			ActorStudentID:  actor.StudentID(),
			Action:          model.AuditManualCheckin,
			TargetUserID:    &uid,
			TargetStudentID: &sid,
			Reason:          &reason,
			CreatedAt:       now,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyAccounted):
			s.metrics.Checkin(string(model.MethodManual), outcomeExisting)
		case errors.Is(err, ErrNoActiveIncident):
		default:
			s.logger.Error("人工签到写入失败", zap.String("incident_id", incidentID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("人工签到",
		zap.String("incident_id", incidentID),
		zap.String("target", target.UserID),
		zap.String("actor", actorID),
	)
	s.metrics.Checkin(string(model.MethodManual), outcomeCreated)

	resp := toAttendanceResponse(saved)
	s.publish(ctx, realtime.AttendanceTopic(incidentID), realtime.TypeAttendance, saved.UserID, 1, resp)
	return &dto.CheckinResponse{Created: true, Record: *resp}, nil
}

// ensureActive 共享行锁复核事件状态，与 End 的更新互斥
func ensureActive(ctx context.Context, tx *repository.Repository, incidentID string) error {
	inc, err := tx.Incident.GetByIDForShare(ctx, incidentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIncidentNotFound
		}
		return err
	}
	if !inc.IsActive() {
		return ErrNoActiveIncident
	}
	return nil
}

// ────────────────────── Queries ──────────────────────

func (s *attendanceService) GetMine(ctx context.Context, incidentID string, actor *Identity) (*dto.AttendanceRecordResponse, error) {
	rec, err := s.repo.Attendance.GetByIncidentAndUser(ctx, incidentID, actor.UserID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttendanceNotFound
		}
		s.logger.Error("查询签到记录失败", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, err
	}
	return toAttendanceResponse(rec), nil
}

func (s *attendanceService) Status(ctx context.Context, incidentID string, actor *Identity, q *dto.StatusQuery) (*dto.RosterStatusResponse, error) {
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanOversee(inc.ResidenceID) {
		return nil, ErrResidenceForbidden
	}

	states, err := projectIncident(ctx, s.repo, inc)
	if err != nil {
		s.logger.Error("名单核对失败", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, err
	}

	sum := Summarize(states)
	if q != nil {
		states = FilterStates(states, ResidentStatus(q.Status), q.Keyword)
	}

	residents := make([]dto.ResidentStatusResponse, 0, len(states))
	for _, st := range states {
		residents = append(residents, toResidentStatusResponse(st))
	}
	return &dto.RosterStatusResponse{
		IncidentID: incidentID,
		Summary: dto.StatusSummaryResponse{
			Total:           sum.Total,
			AccountedGPS:    sum.AccountedGPS,
			AccountedManual: sum.AccountedManual,
			Missing:         sum.Missing,
		},
		Residents: residents,
	}, nil
}

// projectIncident 读取名单与签到记录并投影
func projectIncident(ctx context.Context, repo *repository.Repository, inc *model.Incident) ([]ResidentState, error) {
	roster, err := loadRoster(ctx, repo, inc.ResidenceID)
	if err != nil {
		return nil, err
	}
	records, err := repo.Attendance.ListByIncident(ctx, inc.IncidentID)
	if err != nil {
		return nil, err
	}
	return Project(roster, records), nil
}

func toAttendanceResponse(rec *model.AttendanceRecord) *dto.AttendanceRecordResponse {
	resp := &dto.AttendanceRecordResponse{
		ID:             rec.RecordID,
		IncidentID:     rec.IncidentID,
		UserID:         rec.UserID,
		StudentID:      rec.StudentID,
		AccountedAt:    dto.FormatTime(rec.AccountedAt),
		Method:         string(rec.Method),
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		AccuracyMeters: rec.AccuracyMeters,
		AccountedBy:    rec.AccountedBy,
		ManualReason:   rec.ManualReason,
		FixAt:          dto.FormatTimePtr(rec.FixAt),
	}
	if rec.Method == model.MethodGPS && rec.AccuracyMeters != nil {
		resp.Confidence = string(geo.ConfidenceOf(*rec.AccuracyMeters))
	}
	return resp
}

func toResidentStatusResponse(st ResidentState) dto.ResidentStatusResponse {
	resp := dto.ResidentStatusResponse{
		UserID:     st.User.UserID,
		StudentID:  st.User.StudentID,
		Email:      st.User.Email,
		RoomLabel:  st.User.RoomLabel,
		Status:     string(st.Status),
		Confidence: string(st.Confidence),
	}
	if st.Record != nil {
		at := dto.FormatTime(st.Record.AccountedAt)
		resp.AccountedAt = &at
		if st.Record.Method == model.MethodManual {
			resp.AccountedBy = st.Record.AccountedBy
			resp.Reason = st.Record.ManualReason
		}
	}
	return resp
}
