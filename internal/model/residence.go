package model

// Residence 舍堂表 — 对应 residences
type Residence struct {
	ResidenceID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"residence_id"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	BaseModel

	// 关联
	Checkpoint *Checkpoint `gorm:"foreignKey:ResidenceID;references:ResidenceID" json:"checkpoint,omitempty"`
}

// TableName 指定表名
func (Residence) TableName() string { return "residences" }
