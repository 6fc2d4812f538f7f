package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repokit/data/db/sqlite"
	"repokit/data/orm/basic"
	"repokit/data/orm/repo"
	"repokit/logging"
)

func TestMemoryPublisher(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()
	var seen []string
	p.OnEvent(func(e repo.Event) { seen = append(seen, e.ID) })

	require.NoError(t, p.Publish(ctx, repo.Event{ID: "a"}))
	require.NoError(t, p.Publish(ctx, repo.Event{ID: "b"}))
	assert.Equal(t, []string{"a", "b"}, seen)

	events := p.Events()
	require.Len(t, events, 2)
	events[0].ID = "changed"
	assert.Equal(t, "a", p.Events()[0].ID)

	p.Reset()
	assert.Empty(t, p.Events())
}

// TestMemoryPublisher_WithRepo 仓储写操作依次发布事件
func TestMemoryPublisher_WithRepo(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ExecDDL(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT)`))

	pub := NewMemoryPublisher()
	notes, err := repo.NewRepo[map[string]any](basic.New(db), "notes",
		repo.WithPublisher(pub), repo.WithLogger(logging.NewNoopLogger()))
	require.NoError(t, err)

	_, err = notes.Create(ctx, repo.Attributes{"body": "hello"})
	require.NoError(t, err)
	_, err = notes.Update(ctx, repo.Attributes{"body": "bye"}, int64(1))
	require.NoError(t, err)
	_, err = notes.Delete(ctx, int64(1), false)
	require.NoError(t, err)

	var types []repo.EventType
	for _, e := range pub.Events() {
		types = append(types, e.Type)
		assert.Equal(t, "notes", e.Table)
		assert.NotEmpty(t, e.ID)
	}
	assert.Equal(t, []repo.EventType{repo.EventCreated, repo.EventUpdated, repo.EventDeleted}, types)
}
