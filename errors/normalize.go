package errors

import (
	"database/sql"
	stdErrors "errors"

	"repokit/data/orm"
)

// Normalize 将 ORM 适配器与 database/sql 的哨兵错误规范化为 AppError。
//
// 已是 IError 的错误原样返回；未识别的错误保持原样，交由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(IError); ok {
		return err
	}

	if stdErrors.Is(err, orm.ErrNotFound) || stdErrors.Is(err, sql.ErrNoRows) {
		return WrapError(err, ErrCodeNotFound, "记录不存在")
	}
	if stdErrors.Is(err, orm.ErrUnsupported) {
		return WrapError(err, ErrCodeUnsupported, "适配器不支持该能力")
	}
	if stdErrors.Is(err, orm.ErrInvalidModel) {
		return WrapError(err, ErrCodeConfiguration, "模型不是合法的存储实体")
	}
	return err
}
