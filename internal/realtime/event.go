package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// 事件类型
const (
	TypeIncident   = "incident"
	TypeAttendance = "attendance"
	TypeHelp       = "help"
	TypeRoster     = "roster"
	TypeRole       = "role"
)

// Event 一次变更通知
// Key 为实体键（如 user_id），Version 为该键的单调版本，订阅方据此丢弃旧版本
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Key     string          `json:"key,omitempty"`
	Version int             `json:"version,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent 构造事件，payload 序列化为 JSON
func NewEvent(topic, typ, key string, version int, payload interface{}) (Event, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("序列化事件失败: %w", err)
		}
		data = b
	}
	return Event{
		Topic:   topic,
		Type:    typ,
		Key:     key,
		Version: version,
		Data:    data,
		At:      time.Now().UTC(),
	}, nil
}

// ── 主题 ──

// ResidenceIncidentTopic 舍堂进行中事件
func ResidenceIncidentTopic(residenceID string) string {
	return "residence:" + residenceID + ":incident"
}

// RosterTopic 舍堂名单（授权变更影响有效角色，从而影响名单）
func RosterTopic(residenceID string) string {
	return "residence:" + residenceID + ":roster"
}

// AttendanceTopic 事件签到记录
func AttendanceTopic(incidentID string) string {
	return "incident:" + incidentID + ":attendance"
}

// HelpTopic 事件求助
func HelpTopic(incidentID string) string {
	return "incident:" + incidentID + ":help"
}

// RoleTopic 个人角色变更
func RoleTopic(studentID string) string {
	return "student:" + studentID + ":role"
}
