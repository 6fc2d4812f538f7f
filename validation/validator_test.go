package validation

import (
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	sharederrors "repokit/errors"
)

type validatedUser struct{ Name string }

func (u validatedUser) Validate() error {
	if u.Name == "" {
		return stdErrors.New("name required")
	}
	return nil
}

type strictUser struct{}

func (strictUser) Validate() error {
	return sharederrors.NewError(sharederrors.ErrCodeConflict, "冲突")
}

// TestValidateEntity 测试实体自检
func TestValidateEntity(t *testing.T) {
	assert.NoError(t, ValidateEntity(struct{}{}))
	assert.NoError(t, ValidateEntity(validatedUser{Name: "ann"}))

	err := ValidateEntity(&validatedUser{})
	assert.True(t, sharederrors.IsValidation(err))

	// 已是 IError 的错误保持原错误码
	err = ValidateEntity(strictUser{})
	assert.True(t, sharederrors.IsErrorCode(err, sharederrors.ErrCodeConflict))
}

// TestIsSafeIdentifier 测试标识符安全校验
func TestIsSafeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"name", true},
		{"users.name", true},
		{"_private", true},
		{"schema.users.id", true},
		{"1name", false},
		{"name;drop", false},
		{"users.", false},
		{"", false},
		{"a b", false},
		{"name)--", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSafeIdentifier(tt.name))
		})
	}

	err := ValidateIdentifier("x;y", "列")
	assert.True(t, sharederrors.IsInvalidInput(err))
}

// TestValidateIntRange 测试整数范围
func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(0, "排序列", 0, 2))
	assert.NoError(t, ValidateIntRange(2, "排序列", 0, 2))
	assert.True(t, sharederrors.IsValidation(ValidateIntRange(3, "排序列", 0, 2)))
	assert.True(t, sharederrors.IsValidation(ValidateIntRange(-1, "排序列", 0, 2)))
}

// TestValidateNonNegative 测试非负数
func TestValidateNonNegative(t *testing.T) {
	assert.NoError(t, ValidateNonNegative(0, "每页大小"))
	assert.Error(t, ValidateNonNegative(-5, "每页大小"))
}

// TestValidateEnum 测试枚举
func TestValidateEnum(t *testing.T) {
	assert.NoError(t, ValidateEnum("DESC", "排序方向", []string{"asc", "desc"}))
	assert.True(t, sharederrors.IsValidation(ValidateEnum("up", "排序方向", []string{"asc", "desc"})))
}

// TestValidateRequired 测试必填
func TestValidateRequired(t *testing.T) {
	assert.NoError(t, ValidateRequired("x", "表名"))
	assert.Error(t, ValidateRequired("  ", "表名"))
}
