package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/pkg/metrics"
	"nus-fire-evac/backend/pkg/response"
)

// SSE 事件名
const (
	sseSnapshot  = "snapshot"
	sseHeartbeat = "heartbeat"
	sseReset     = "reset"
)

// Streamer Server-Sent Events 推送：先快照，后增量
type Streamer struct {
	hub       realtime.Hub
	heartbeat time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewStreamer 创建 Streamer；heartbeat<=0 时取 15s
func NewStreamer(hub realtime.Hub, heartbeat time.Duration, m *metrics.Metrics, logger *zap.Logger) *Streamer {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Streamer{hub: hub, heartbeat: heartbeat, metrics: m, logger: logger}
}

type snapshotFunc func(ctx context.Context) (interface{}, error)

// Stream 先订阅再读快照，订阅到快照之间的变更会在快照之后送达，
// 订阅方按 key + version 丢弃旧版本。
// 快照失败时尚未写出事件流头，由 onErr 按普通 JSON 响应处理。
func (s *Streamer) Stream(c *gin.Context, topics []string, snapshot snapshotFunc, onErr func(*gin.Context, error)) {
	ctx := c.Request.Context()

	sub, err := s.hub.Subscribe(ctx, topics...)
	if err != nil {
		s.logger.Error("建立订阅失败", zap.Strings("topics", topics), zap.Error(err))
		response.ServiceUnavailable(c, "实时推送暂不可用")
		return
	}
	defer sub.Close()

	snap, err := snapshot(ctx)
	if err != nil {
		onErr(c, err)
		return
	}

	s.metrics.SubscriberAdded()
	defer s.metrics.SubscriberRemoved()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(sseSnapshot, snap)
	c.Writer.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// 被动断开（如消费过慢），通知客户端重新拉快照
				if err := sub.Err(); err != nil {
					s.logger.Warn("订阅被断开", zap.Strings("topics", topics), zap.Error(err))
					c.SSEvent(sseReset, gin.H{"message": err.Error()})
					c.Writer.Flush()
				}
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
		case t := <-ticker.C:
			c.SSEvent(sseHeartbeat, gin.H{"at": t.UTC()})
			c.Writer.Flush()
		}
	}
}
