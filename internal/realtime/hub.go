package realtime

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrSlowConsumer 订阅方消费过慢被断开，需重新获取快照后再订阅
	ErrSlowConsumer = errors.New("订阅方消费过慢，已断开")
	// ErrHubClosed Hub 已关闭
	ErrHubClosed = errors.New("实时推送已关闭")
)

// Hub 按主题发布订阅
// 订阅建立后才读取快照，保证快照与增量之间不丢事件
type Hub interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
	Close() error
}

// Subscription 一个订阅；Events 关闭后通过 Err 获取原因
type Subscription struct {
	ch     chan Event
	once   sync.Once
	mu     sync.Mutex
	err    error
	cancel func()
	// producerCloses 为 true 时由投递协程负责关闭 ch
	producerCloses bool
}

func newSubscription(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscription{ch: make(chan Event, buffer)}
}

// Events 事件流
func (s *Subscription) Events() <-chan Event { return s.ch }

// Err 订阅结束原因；正常关闭为 nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close 取消订阅
func (s *Subscription) Close() {
	s.closeWith(nil)
}

func (s *Subscription) closeWith(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
		if !s.producerCloses {
			close(s.ch)
		}
	})
}

// offer 非阻塞投递；缓冲已满时断开订阅
func (s *Subscription) offer(ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}
