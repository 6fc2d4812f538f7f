package notify

import (
	"context"
	"sync"

	"repokit/data/orm/repo"
)

var _ repo.IEventPublisher = (*MemoryPublisher)(nil)

// MemoryPublisher 在内存中记录事件，可选地同步回调
type MemoryPublisher struct {
	mu      sync.Mutex
	events  []repo.Event
	handler func(repo.Event)
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// OnEvent 注册回调，在 Publish 中同步调用
func (p *MemoryPublisher) OnEvent(fn func(repo.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = fn
}

func (p *MemoryPublisher) Publish(ctx context.Context, event repo.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, event)
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(event)
	}
	return nil
}

// Events 返回已发布事件的副本
func (p *MemoryPublisher) Events() []repo.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]repo.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
