package errors

import (
	"context"
	"fmt"
	"runtime"

	"repokit/logging"
)

// Wrap 包装错误，添加错误码并在 Debug 级别记录调用位置
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)
	logging.GetLogger().Debug(ctx, fmt.Sprintf("错误包装: %s (位置: %s:%d)", msg, file, line))
	return wrapped
}

// WrapWithLog 包装错误并记录警告日志
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	allFields := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, allFields...)

	return wrapped
}

// UniqueViolationDetector 由方言实现，用于识别唯一键冲突
type UniqueViolationDetector interface {
	IsUniqueViolation(err error) bool
}

// WrapDatabaseError 包装存储层错误。
//
// 已是 IError 的错误原样返回；唯一键冲突映射为 ErrCodeDuplicate；
// 其余包装为 ErrCodeDatabase 并保留原始错误。
func WrapDatabaseError(ctx context.Context, err error, operation string, detector UniqueViolationDetector) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(IError); ok {
		return err
	}
	if detector != nil && detector.IsUniqueViolation(err) {
		return WrapError(err, ErrCodeDuplicate, operation)
	}
	return WrapWithLog(ctx, err, ErrCodeDatabase,
		fmt.Sprintf("数据库操作失败: %s", operation),
		logging.String("operation", operation),
	)
}

// New 创建新错误（消息附带调用位置）
func New(code ErrorCode, msg string) error {
	_, file, line, _ := runtime.Caller(1)
	return NewError(code, fmt.Sprintf("%s (位置: %s:%d)", msg, file, line))
}

// NewValidationError 创建新的验证错误
func NewValidationError(msg string) error {
	return New(ErrCodeValidation, msg)
}
