package service

import (
	"context"

	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/realtime"
)

// notifier 提交后发布实时事件
// 写入已提交，发布失败只记录日志，订阅方断线重连时会重新获取快照
type notifier struct {
	hub    realtime.Hub
	logger *zap.Logger
}

func (n notifier) publish(ctx context.Context, topic, typ, key string, version int, payload interface{}) {
	if n.hub == nil {
		return
	}
	ev, err := realtime.NewEvent(topic, typ, key, version, payload)
	if err != nil {
		n.logger.Error("构造实时事件失败", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := n.hub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		n.logger.Warn("发布实时事件失败", zap.String("topic", topic), zap.Error(err))
	}
}
