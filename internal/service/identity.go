package service

import "nus-fire-evac/backend/internal/model"

// Identity 当前请求的身份
// 由认证中间件在每次请求时通过 RoleService 重新解析，不跨请求缓存
type Identity struct {
	User *model.User
	// Role 有效角色，非存储标签
	Role model.Role
	// SupervisedResidenceID 监督员负责的舍堂；存在指派时以指派为准
	SupervisedResidenceID string
}

// UserID 身份提供方 uid
func (i *Identity) UserID() string { return i.User.UserID }

// StudentID 学号
func (i *Identity) StudentID() string { return i.User.StudentID }

// IsOffice 是否为办公室（不受舍堂范围限制）
func (i *Identity) IsOffice() bool { return i.Role == model.RoleOffice }

// CanOversee 是否可管理该舍堂的事件、名单与求助
func (i *Identity) CanOversee(residenceID string) bool {
	switch i.Role {
	case model.RoleOffice:
		return true
	case model.RoleSupervisor:
		return i.SupervisedResidenceID != "" && i.SupervisedResidenceID == residenceID
	default:
		return false
	}
}

// BelongsTo 住户是否属于该舍堂名单
func (i *Identity) BelongsTo(residenceID string) bool {
	return i.Role == model.RoleResident && i.User.ResidenceID == residenceID
}
