package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repokit/logging"
)

// EventType 记录变更事件类型
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventRestored EventType = "restored"
)

// Event 记录变更事件，写操作成功后发布
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Table      string    `json:"table"`
	Key        any       `json:"key,omitempty"`
	Record     any       `json:"record,omitempty"`
	Affected   int64     `json:"affected"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IEventPublisher 事件发布端口
type IEventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

func (r *Repo[T]) newEvent(typ EventType, key, record any, affected int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Table:      r.meta.Table,
		Key:        key,
		Record:     record,
		Affected:   affected,
		OccurredAt: r.now(),
	}
}

// afterWrite 写操作成功后：失效缓存并发布事件（事务内延迟到提交后）
func (r *Repo[T]) afterWrite(ctx context.Context, event Event) {
	r.invalidate(ctx)
	if r.tx != nil {
		r.tx.events = append(r.tx.events, event)
		return
	}
	r.publish(ctx, event)
}

func (r *Repo[T]) publish(ctx context.Context, event Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn(ctx, "发布变更事件失败",
			logging.String("event_id", event.ID),
			logging.String("event_type", string(event.Type)),
			logging.Error(err),
		)
	}
}
