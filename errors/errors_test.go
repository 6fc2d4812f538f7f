package errors

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repokit/data/orm"
)

type fakeDetector struct{}

func (fakeDetector) IsUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func TestWrapError_KeepsCause(t *testing.T) {
	cause := stdErrors.New("disk I/O error")
	err := WrapError(cause, ErrCodeDatabase, "查询失败")

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeDatabase, err.Code())
	assert.True(t, stdErrors.Is(err, cause))
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Nil(t, WrapError(nil, ErrCodeDatabase, "x"))
}

func TestAppError_IsByCode(t *testing.T) {
	err := NewError(ErrCodeNotFound, "用户不存在")
	assert.True(t, stdErrors.Is(err, ErrNotFound))
	assert.False(t, stdErrors.Is(err, ErrDatabase))

	wrapped := fmt.Errorf("service: %w", err)
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, ErrCodeNotFound, GetErrorCode(wrapped))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(stdErrors.New("plain")))
}

func TestWithContext_ReturnsCopy(t *testing.T) {
	base := NewError(ErrCodeInvalidInput, "非法操作符")
	withCtx := base.WithContext("operator", "~~")

	assert.Equal(t, "~~", withCtx.Details()["operator"])
	assert.Empty(t, base.Details())
}

func TestWrapDatabaseError(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, WrapDatabaseError(ctx, nil, "insert", nil))

	dup := WrapDatabaseError(ctx, stdErrors.New("UNIQUE constraint failed: users.email"), "insert", fakeDetector{})
	assert.True(t, IsErrorCode(dup, ErrCodeDuplicate))

	dbErr := WrapDatabaseError(ctx, stdErrors.New("connection refused"), "select", fakeDetector{})
	assert.True(t, IsErrorCode(dbErr, ErrCodeDatabase))

	already := NewError(ErrCodeNotFound, "missing")
	assert.Same(t, already, WrapDatabaseError(ctx, already, "select", nil))
}

func TestNormalize(t *testing.T) {
	assert.True(t, IsNotFound(Normalize(orm.ErrNotFound)))
	assert.True(t, IsNotFound(Normalize(sql.ErrNoRows)))
	assert.True(t, IsErrorCode(Normalize(orm.ErrUnsupported), ErrCodeUnsupported))
	assert.True(t, IsConfiguration(Normalize(orm.ErrInvalidModel)))

	other := stdErrors.New("other")
	assert.Equal(t, other, Normalize(other))
	assert.Nil(t, Normalize(nil))
}

func TestNew_IncludesLocation(t *testing.T) {
	err := New(ErrCodeValidation, "验证失败")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "验证失败")
	assert.Contains(t, err.Error(), "errors_test.go")
	assert.True(t, IsValidation(err))
}
