package orm

import "errors"

var (
	// ErrNotFound 表示记录未找到。
	ErrNotFound = errors.New("orm: record not found")
	// ErrUnsupported 表示当前适配器不支持请求的能力。
	ErrUnsupported = errors.New("orm: capability unsupported")
	// ErrInvalidModel 表示模型类型无法映射为记录（非结构体且非 map[string]any）。
	ErrInvalidModel = errors.New("orm: invalid model")
	// ErrUnknownColumn 表示属性中出现模型未声明的列。
	ErrUnknownColumn = errors.New("orm: unknown column")
	// ErrInvalidAssociation 表示关联声明无法解析。
	ErrInvalidAssociation = errors.New("orm: invalid association")
)
