package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryHub 进程内实现，适用于单实例部署与测试
type MemoryHub struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscription
	buffer int
	closed bool
}

// NewMemoryHub 创建进程内 Hub
func NewMemoryHub(buffer int) *MemoryHub {
	return &MemoryHub{topics: make(map[string]map[string]*Subscription), buffer: buffer}
}

func (h *MemoryHub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	var slow []*Subscription
	for _, sub := range h.topics[ev.Topic] {
		if !sub.offer(ev) {
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	// 在锁外断开，closeWith 会回调 remove
	for _, sub := range slow {
		sub.closeWith(ErrSlowConsumer)
	}
	return nil
}

func (h *MemoryHub) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	sub := newSubscription(h.buffer)
	id := uuid.NewString()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	for _, t := range topics {
		if h.topics[t] == nil {
			h.topics[t] = make(map[string]*Subscription)
		}
		h.topics[t][id] = sub
	}
	h.mu.Unlock()

	stop := make(chan struct{})
	sub.cancel = func() {
		close(stop)
		h.remove(id, topics)
	}
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-stop:
		}
	}()
	return sub, nil
}

func (h *MemoryHub) remove(id string, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		delete(h.topics[t], id)
		if len(h.topics[t]) == 0 {
			delete(h.topics, t)
		}
	}
}

// Close 关闭全部订阅
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	seen := make(map[*Subscription]bool)
	for _, subs := range h.topics {
		for _, sub := range subs {
			if !seen[sub] {
				seen[sub] = true
				all = append(all, sub)
			}
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	return nil
}

// subscriberCount 测试用
func (h *MemoryHub) subscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
