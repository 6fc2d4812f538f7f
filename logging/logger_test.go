package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestStdLogger_LevelFilter 测试级别过滤
func TestStdLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, "[repo]", WarnLevel)

	l.Debug(context.Background(), "debug message")
	l.Info(context.Background(), "info message")
	assert.Empty(t, buf.String())

	l.Warn(context.Background(), "slow query", Duration("elapsed", 2*time.Second))
	out := buf.String()
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[repo] slow query")
	assert.Contains(t, out, "elapsed=2s")
}

// TestStdLogger_WithFields 测试字段继承且不修改原 Logger
func TestStdLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLoggerTo(&buf, "", DebugLevel)
	child := base.WithFields(String("component", "repo"), String("table", "users"))

	child.Error(context.Background(), "query failed", Error(errors.New("boom")), Int64("rows", 3))
	out := buf.String()
	assert.Contains(t, out, "component=repo")
	assert.Contains(t, out, "table=users")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "rows=3")

	buf.Reset()
	base.Info(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "component=repo")
}

// TestParseLevel 测试级别解析
func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, "WARN", WarnLevel.String())
}

// TestGlobalLogger 测试全局 Logger 替换
func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	noop := NewNoopLogger()
	SetLogger(noop)
	assert.Same(t, noop, GetLogger())

	SetLogger(nil)
	_, ok := GetLogger().(*NoopLogger)
	assert.True(t, ok)

	assert.NotNil(t, ComponentLogger("repo"))
}

// TestZapLogger_Fields 测试字段映射到 zap
func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core)).WithFields(String("component", "repo"))

	l.Info(context.Background(), "fetched",
		Int("count", 2),
		Bool("cached", true),
		Error(errors.New("stale")),
		Any("filters", map[string]any{"name": "x"}),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fetched", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "repo", ctx["component"])
	assert.Equal(t, int64(2), ctx["count"])
	assert.Equal(t, true, ctx["cached"])
	assert.Equal(t, "stale", ctx["error"])
}

// TestNewZapLogger 测试按配置构建
func TestNewZapLogger(t *testing.T) {
	l, err := NewZapLogger(ZapConfig{Env: "prod", Level: "warn", ServiceName: "repoquery"})
	require.NoError(t, err)
	assert.NotNil(t, l.Zap())
	assert.False(t, l.Zap().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Zap().Core().Enabled(zapcore.ErrorLevel))

	var _ Logger = l
	var _ Logger = NewStdLogger("")
	var _ Logger = NewNoopLogger()
}

func BenchmarkStdLogger_WithFields(b *testing.B) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, "", InfoLevel)
	for i := 0; i < b.N; i++ {
		l.WithFields(String("table", "users")).Info(context.Background(), "x")
	}
}
