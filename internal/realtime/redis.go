package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgredis "nus-fire-evac/backend/pkg/redis"
)

// RedisHub 基于 Redis Pub/Sub 的实现，多实例部署共享事件
type RedisHub struct {
	client *pkgredis.Client
	prefix string
	buffer int
	logger *zap.Logger
}

// NewRedisHub 创建 Redis Hub；prefix 为频道前缀（如 "evac:"）
func NewRedisHub(client *pkgredis.Client, prefix string, buffer int, logger *zap.Logger) *RedisHub {
	return &RedisHub{client: client, prefix: prefix, buffer: buffer, logger: logger}
}

func (h *RedisHub) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	if err := h.client.Publish(ctx, h.prefix+ev.Topic, payload); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

func (h *RedisHub) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = h.prefix + t
	}

	ps := h.client.Subscribe(ctx, channels...)
	// 等待订阅确认，之后读取的快照不会漏掉增量
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("订阅失败: %w", err)
	}

	sub := newSubscription(h.buffer)
	sub.producerCloses = true
	loopCtx, cancel := context.WithCancel(ctx)
	sub.cancel = func() {
		cancel()
		_ = ps.Close()
	}

	go func() {
		defer close(sub.ch)
		defer sub.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-loopCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					h.logger.Warn("丢弃无法解析的实时事件",
						zap.String("channel", msg.Channel),
						zap.Error(err),
					)
					continue
				}
				if ev.Topic == "" {
					ev.Topic = strings.TrimPrefix(msg.Channel, h.prefix)
				}
				if !sub.offer(ev) {
					sub.closeWith(ErrSlowConsumer)
					return
				}
			}
		}
	}()

	return sub, nil
}

// Close 连接由 pkg/redis.Client 持有，这里无需释放
func (h *RedisHub) Close() error { return nil }
