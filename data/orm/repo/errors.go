package repo

import (
	stdErrors "errors"

	"repokit/data/orm"
	"repokit/errors"
)

func invalidInput(format string, args ...any) error {
	return errors.NewErrorf(errors.ErrCodeInvalidInput, format, args...)
}

// invalidQuery 将查询构造阶段的错误统一为 ErrCodeInvalidInput
func invalidQuery(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(errors.IError); ok {
		return err
	}
	return errors.WrapError(err, errors.ErrCodeInvalidInput, "非法的查询描述")
}

// assignError 属性赋值失败：未知列视为非法输入
func assignError(err error) error {
	if stdErrors.Is(err, orm.ErrUnknownColumn) {
		return errors.WrapError(err, errors.ErrCodeInvalidInput, "未知的列")
	}
	return errors.WrapError(err, errors.ErrCodeValidation, "属性赋值失败")
}
