package model

import "nus-fire-evac/backend/pkg/geo"

// Checkpoint 集合点表 — 对应 checkpoints（每个舍堂至多一个）
type Checkpoint struct {
	CheckpointID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"checkpoint_id"`
	ResidenceID  string  `gorm:"type:uuid;not null;uniqueIndex"                 json:"residence_id"`
	Name         string  `gorm:"type:varchar(100)"                              json:"name,omitempty"`
	Latitude     float64 `gorm:"not null"                                       json:"latitude"`
	Longitude    float64 `gorm:"not null"                                       json:"longitude"`
	RadiusMeters float64 `gorm:"not null"                                       json:"radius_meters"`
	VersionedModel
}

// TableName 指定表名
func (Checkpoint) TableName() string { return "checkpoints" }

// Fence 转换为地理围栏
func (c *Checkpoint) Fence() geo.Fence {
	return geo.Fence{
		Center:       geo.Point{Latitude: c.Latitude, Longitude: c.Longitude},
		RadiusMeters: c.RadiusMeters,
	}
}
