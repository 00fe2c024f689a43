package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	auditPageSize   = 500
)

// ExportService 事件报表导出
//
// 报表包含三个 Sheet：
//   - 名单核对：汇总 + 每位住户的状态
//   - 求助：仍为 open 的求助
//   - 审计日志：按时间顺序
type ExportService interface {
	// ExportIncident 校验管理范围后导出
	ExportIncident(ctx context.Context, incidentID string, actor *Identity) (*bytes.Buffer, string, error)
	// BuildReport 不做权限判断，供事件结束后归档使用
	BuildReport(ctx context.Context, incidentID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) ExportIncident(ctx context.Context, incidentID string, actor *Identity) (*bytes.Buffer, string, error) {
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, "", err
	}
	if !actor.CanOversee(inc.ResidenceID) {
		return nil, "", ErrResidenceForbidden
	}
	return s.build(ctx, inc)
}

func (s *exportService) BuildReport(ctx context.Context, incidentID string) (*bytes.Buffer, string, error) {
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, "", err
	}
	return s.build(ctx, inc)
}

// ═══════════════════════════════════════════════════════════
// build 生成事件报表
// ═══════════════════════════════════════════════════════════

func (s *exportService) build(ctx context.Context, inc *model.Incident) (*bytes.Buffer, string, error) {
	// 1. 收集数据
	residenceName := inc.ResidenceID
	if res, err := s.repo.Residence.GetByID(ctx, inc.ResidenceID); err == nil {
		residenceName = res.Name
	}

	states, err := projectIncident(ctx, s.repo, inc)
	if err != nil {
		s.logger.Error("导出名单失败", zap.String("incident_id", inc.IncidentID), zap.Error(err))
		return nil, "", err
	}
	openHelp, err := s.repo.HelpRequest.ListOpen(ctx, inc.IncidentID)
	if err != nil {
		s.logger.Error("导出求助失败", zap.String("incident_id", inc.IncidentID), zap.Error(err))
		return nil, "", err
	}
	logs, err := s.allAuditLogs(ctx, inc.IncidentID)
	if err != nil {
		s.logger.Error("导出审计日志失败", zap.String("incident_id", inc.IncidentID), zap.Error(err))
		return nil, "", err
	}

	// 2. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	rosterSheet := "名单核对"
	idx, _ := f.NewSheet(rosterSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	// 标题与汇总
	sum := Summarize(states)
	f.SetCellValue(rosterSheet, "A1", fmt.Sprintf("%s 疏散核对（%s）", residenceName, dto.FormatTime(inc.StartedAt)))
	f.MergeCell(rosterSheet, "A1", "G1")
	f.SetCellStyle(rosterSheet, "A1", "A1", headerStyle)
	f.SetCellValue(rosterSheet, "A2", fmt.Sprintf("总人数 %d，GPS 签到 %d，人工签到 %d，未签到 %d",
		sum.Total, sum.AccountedGPS, sum.AccountedManual, sum.Missing))
	f.MergeCell(rosterSheet, "A2", "G2")

	writeHeader(f, rosterSheet, 3, headerStyle, "学号", "邮箱", "房间", "状态", "可信度", "签到时间", "人工签到原因")
	for col, width := range []float64{14, 28, 10, 16, 10, 26, 30} {
		name := colName(col)
		f.SetColWidth(rosterSheet, name, name, width)
	}
	row := 4
	for _, st := range states {
		accountedAt, reason := "-", ""
		if st.Record != nil {
			accountedAt = dto.FormatTime(st.Record.AccountedAt)
			if st.Record.ManualReason != nil {
				reason = *st.Record.ManualReason
			}
		}
		writeRow(f, rosterSheet, row,
			st.User.StudentID, st.User.Email, st.User.Room(), statusLabel(st.Status),
			string(st.Confidence), accountedAt, reason)
		row++
	}

	// 求助
	helpSheet := "求助"
	f.NewSheet(helpSheet)
	writeHeader(f, helpSheet, 1, headerStyle, "学号", "房间", "首次求助", "最近更新")
	for i, r := range openHelp {
		room := ""
		if r.RoomLabel != nil {
			room = *r.RoomLabel
		}
		writeRow(f, helpSheet, i+2, r.StudentID, room, dto.FormatTime(r.CreatedAt), dto.FormatTime(r.UpdatedAt))
	}

	// 审计日志
	auditSheet := "审计日志"
	f.NewSheet(auditSheet)
	writeHeader(f, auditSheet, 1, headerStyle, "时间", "操作人", "动作", "对象", "原因")
	for i, e := range logs {
		target, reason := "", ""
		if e.TargetStudentID != nil {
			target = *e.TargetStudentID
		}
		if e.Reason != nil {
			reason = *e.Reason
		}
		actor := e.ActorStudentID
		if actor == "" {
			actor = e.ActorID
		}
		writeRow(f, auditSheet, i+2, dto.FormatTime(e.CreatedAt), actor, auditLabel(e.Action), target, reason)
	}

	// 3. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("疏散核对_%s_%s.xlsx", residenceName, inc.StartedAt.Format("20060102-1504"))
	return buf, filename, nil
}

func (s *exportService) allAuditLogs(ctx context.Context, incidentID string) ([]model.AuditLog, error) {
	var all []model.AuditLog
	for offset := 0; ; offset += auditPageSize {
		page, total, err := s.repo.AuditLog.ListByIncident(ctx, incidentID, offset, auditPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			return all, nil
		}
	}
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, row, style int, titles ...string) {
	for i, t := range titles {
		c := cell(colName(i), row)
		f.SetCellValue(sheet, c, t)
		f.SetCellStyle(sheet, c, c, style)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...string) {
	for i, v := range values {
		f.SetCellValue(sheet, cell(colName(i), row), v)
	}
}

func statusLabel(st ResidentStatus) string {
	switch st {
	case StatusAccountedGPS:
		return "已签到（GPS）"
	case StatusAccountedManual:
		return "已签到（人工）"
	default:
		return "未签到"
	}
}

func auditLabel(a model.AuditAction) string {
	switch a {
	case model.AuditStartIncident:
		return "开始疏散"
	case model.AuditEndIncident:
		return "结束疏散"
	case model.AuditManualCheckin:
		return "人工签到"
	default:
		return string(a)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
