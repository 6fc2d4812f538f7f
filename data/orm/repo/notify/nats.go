// Package notify 提供仓储变更事件的发布实现。
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"repokit/data/orm/repo"
	"repokit/errors"
	"repokit/logging"
)

var _ repo.IEventPublisher = (*NatsPublisher)(nil)

// msgPublisher *nats.Conn 中用到的部分
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NatsConfig NATS 发布配置
type NatsConfig struct {
	URL           string
	SubjectPrefix string // 默认 "repo."，主题为 <prefix><table>.<type>
	Conn          *nats.Conn
	Logger        logging.Logger
}

// NatsPublisher 将事件以 JSON 发布到 NATS，消息头 Nats-Msg-Id 为事件 ID，供 JetStream 去重
type NatsPublisher struct {
	cfg      NatsConfig
	logger   logging.Logger
	conn     msgPublisher
	raw      *nats.Conn
	ownsConn bool
	mu       sync.Mutex
}

// NewNatsPublisher 创建发布器；未提供 Conn 时在首次发布时按 URL 连接
func NewNatsPublisher(cfg NatsConfig) *NatsPublisher {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "repo."
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "repo.notify.nats"))
	}
	p := &NatsPublisher{cfg: cfg, logger: cfg.Logger}
	if cfg.Conn != nil {
		p.conn = cfg.Conn
		p.raw = cfg.Conn
	}
	return p
}

func (p *NatsPublisher) Publish(ctx context.Context, event repo.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := p.ensureConnection()
	if err != nil {
		return errors.WrapError(err, errors.ErrCodePublish, "连接 NATS 失败")
	}
	msg, err := p.buildMsg(event)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodePublish, "序列化事件失败")
	}
	if err := conn.PublishMsg(msg); err != nil {
		return errors.WrapError(err, errors.ErrCodePublish, "发布事件失败")
	}
	p.logger.Debug(ctx, "事件已发布",
		logging.String("subject", msg.Subject),
		logging.String("event_id", event.ID))
	return nil
}

// Close 仅关闭自行建立的连接
func (p *NatsPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ownsConn && p.raw != nil {
		p.raw.Close()
	}
	p.conn, p.raw = nil, nil
	return nil
}

// Subject 返回事件对应的主题
func (p *NatsPublisher) Subject(event repo.Event) string {
	return p.cfg.SubjectPrefix + subjectToken(event.Table) + "." + string(event.Type)
}

func (p *NatsPublisher) buildMsg(event repo.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(p.Subject(event))
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Data = data
	return msg, nil
}

func (p *NatsPublisher) ensureConnection() (msgPublisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	url := p.cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	p.conn, p.raw, p.ownsConn = conn, conn, true
	return conn, nil
}

// subjectToken 主题中 "." 为层级分隔，通配符不可出现在发布主题中
func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}
