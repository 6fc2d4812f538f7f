// Package validation 提供仓储输入校验所需的小型验证函数。
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"repokit/errors"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// IValidatable 由需要在写入前自检的实体实现
type IValidatable interface {
	Validate() error
}

// ValidateEntity 若实体实现 IValidatable 则执行校验，非 IError 的错误包装为验证错误
func ValidateEntity(entity any) error {
	v, ok := entity.(IValidatable)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	if _, isAppErr := err.(errors.IError); isAppErr {
		return err
	}
	return errors.WrapError(err, errors.ErrCodeValidation, "实体校验失败")
}

// IsSafeIdentifier 判断是否为安全的列/表标识符（可带一级或多级 . 限定）
func IsSafeIdentifier(name string) bool {
	return identifierRegex.MatchString(name)
}

// ValidateIdentifier 校验标识符，失败返回 ErrCodeInvalidInput
func ValidateIdentifier(name, kind string) error {
	if !IsSafeIdentifier(name) {
		return errors.NewErrorf(errors.ErrCodeInvalidInput, "非法的%s标识符: %q", kind, name)
	}
	return nil
}

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能为空", fieldName))
	}
	return nil
}

// ValidateIntRange 验证整数范围（闭区间）
func ValidateIntRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能小于%d（当前%d）", fieldName, min, value))
	}
	if value > max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能大于%d（当前%d）", fieldName, max, value))
	}
	return nil
}

// ValidateNonNegative 验证非负数
func ValidateNonNegative(value int, fieldName string) error {
	if value < 0 {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能为负数（当前%d）", fieldName, value))
	}
	return nil
}

// ValidateEnum 验证枚举值（忽略大小写）
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if strings.EqualFold(value, valid) {
			return nil
		}
	}
	return errors.NewError(errors.ErrCodeValidation,
		fmt.Sprintf("%s的值无效，必须是以下之一: %v", fieldName, validValues))
}
