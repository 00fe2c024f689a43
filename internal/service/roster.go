package service

import (
	"context"
	"strings"

	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/geo"
)

// ResidentStatus 住户在某次事件中的状态
type ResidentStatus string

const (
	StatusMissing         ResidentStatus = "missing"
	StatusAccountedGPS    ResidentStatus = "accounted_gps"
	StatusAccountedManual ResidentStatus = "accounted_manual"
)

// ResidentState 名单中的一行
type ResidentState struct {
	User   model.User
	Status ResidentStatus
	Record *model.AttendanceRecord
	// Confidence 仅 GPS 签到有值
	Confidence geo.Confidence
}

// loadRoster 名单 = 该舍堂中有效角色为 resident 的人员
// 授权集合每次实时读取，被授权为监督员的人不在名单内
func loadRoster(ctx context.Context, repo *repository.Repository, residenceID string) ([]model.User, error) {
	users, err := repo.User.ListByResidence(ctx, residenceID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.StudentID)
	}
	granted, err := repo.AccessGrant.FilterGranted(ctx, ids)
	if err != nil {
		return nil, err
	}

	roster := make([]model.User, 0, len(users))
	for _, u := range users {
		if EffectiveRole(u.Role, granted[u.StudentID]) == model.RoleResident {
			roster = append(roster, u)
		}
	}
	return roster, nil
}

// Project 名单 × 签到记录 → 每人状态
// 名单中每人恰好一行，默认 missing；不在名单中的记录被忽略
func Project(roster []model.User, records []model.AttendanceRecord) []ResidentState {
	byUser := make(map[string]*model.AttendanceRecord, len(records))
	for i := range records {
		byUser[records[i].UserID] = &records[i]
	}

	states := make([]ResidentState, 0, len(roster))
	for _, u := range roster {
		st := ResidentState{User: u, Status: StatusMissing}
		if rec, ok := byUser[u.UserID]; ok {
			st.Record = rec
			switch rec.Method {
			case model.MethodGPS:
				st.Status = StatusAccountedGPS
				if rec.AccuracyMeters != nil {
					st.Confidence = geo.ConfidenceOf(*rec.AccuracyMeters)
				}
			case model.MethodManual:
				st.Status = StatusAccountedManual
			}
		}
		states = append(states, st)
	}
	return states
}

// Summary 各状态计数
type Summary struct {
	Total           int
	AccountedGPS    int
	AccountedManual int
	Missing         int
}

// Summarize 汇总
func Summarize(states []ResidentState) Summary {
	sum := Summary{Total: len(states)}
	for _, st := range states {
		switch st.Status {
		case StatusAccountedGPS:
			sum.AccountedGPS++
		case StatusAccountedManual:
			sum.AccountedManual++
		default:
			sum.Missing++
		}
	}
	return sum
}

// FilterStates 按状态筛选，并按学号 / 邮箱 / 房间号做不区分大小写的包含匹配
func FilterStates(states []ResidentState, status ResidentStatus, keyword string) []ResidentState {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if status == "" && keyword == "" {
		return states
	}
	result := make([]ResidentState, 0, len(states))
	for _, st := range states {
		if status != "" && st.Status != status {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(st.User.StudentID), keyword) &&
			!strings.Contains(strings.ToLower(st.User.Email), keyword) &&
			!strings.Contains(strings.ToLower(st.User.Room()), keyword) {
			continue
		}
		result = append(result, st)
	}
	return result
}
