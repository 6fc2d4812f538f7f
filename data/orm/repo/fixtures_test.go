package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repokit/data/db/sqlite"
	"repokit/data/orm"
	"repokit/data/orm/basic"
	"repokit/logging"
)

type user struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name       string     `db:"name" json:"name"`
	Email      string     `db:"email" json:"email"`
	Age        int        `db:"age" json:"age"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at"`
	PostsCount int64      `gorm:"column:posts_count;->" json:"posts_count"`
	Posts      []post     `json:"posts,omitempty"`
}

type post struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID int64  `db:"user_id" json:"user_id"`
	Title  string `db:"title" json:"title"`
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func openTestOrm(t *testing.T) *basic.Orm {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.ExecDDL(context.Background(),
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT,
			age INTEGER,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE UNIQUE INDEX users_email ON users (email)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, title TEXT)`,
	))
	return basic.New(db)
}

func setupRepo(t *testing.T, opts ...Option) *Repo[user] {
	t.Helper()
	return newUserRepo(t, openTestOrm(t), opts...)
}

func newUserRepo(t *testing.T, o orm.IOrm, opts ...Option) *Repo[user] {
	t.Helper()
	base := []Option{
		WithAssociations(orm.AssociationMeta{Name: "Posts", Kind: orm.AssociationHasMany}),
		WithLogger(logging.NewNoopLogger()),
		WithClock(fixedClock),
	}
	r, err := NewRepo[user](o, "users", append(base, opts...)...)
	require.NoError(t, err)
	return r
}

// seedUsers 插入 user01..userNN，年龄依次为 1..n
func seedUsers(t *testing.T, r *Repo[user], n int) []*user {
	t.Helper()
	out := make([]*user, 0, n)
	for i := 1; i <= n; i++ {
		u, err := r.Create(context.Background(), Attributes{
			"name":  fmt.Sprintf("user%02d", i),
			"email": fmt.Sprintf("user%02d@example.com", i),
			"age":   i,
		})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func seedPosts(t *testing.T, o *basic.Orm, userID int64, titles ...string) {
	t.Helper()
	posts, err := NewRepo[post](o, "posts", WithLogger(logging.NewNoopLogger()))
	require.NoError(t, err)
	for _, title := range titles {
		_, err := posts.Create(context.Background(), Attributes{"user_id": userID, "title": title})
		require.NoError(t, err)
	}
}

func names(rows []user) []string {
	out := make([]string, 0, len(rows))
	for _, u := range rows {
		out = append(out, u.Name)
	}
	return out
}

// fakeCache 内存实现的 IResultCache，记录调用次数
type fakeCache struct {
	data        map[string][]byte
	hits        int
	invalidated int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) Get(_ context.Context, table, key string) ([]byte, bool, error) {
	v, ok := c.data[table+"|"+key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, table, key string, value []byte, _ time.Duration) error {
	c.data[table+"|"+key] = value
	return nil
}

func (c *fakeCache) Invalidate(context.Context, string) error {
	c.invalidated++
	c.data = map[string][]byte{}
	return nil
}

// fakePublisher 收集发布的事件
type fakePublisher struct {
	events []Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []EventType {
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// limitedOrm 覆盖能力集合的适配器，其余操作委托给内部实现
type limitedOrm struct {
	orm.IOrm
	caps orm.Capabilities
}

func (o limitedOrm) Capabilities() orm.Capabilities { return o.caps }

func (o limitedOrm) Model(meta *orm.ModelMeta) orm.IModel {
	return limitedModel{IModel: o.IOrm.Model(meta), caps: o.caps}
}

type limitedModel struct {
	orm.IModel
	caps orm.Capabilities
}

func (m limitedModel) Capabilities() orm.Capabilities { return m.caps }
