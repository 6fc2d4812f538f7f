package repo

import "strings"

// SortDirection 排序方向
type SortDirection string

const (
	ASC  SortDirection = "ASC"
	DESC SortDirection = "DESC"
)

func (s SortDirection) IsValid() bool { return s == ASC || s == DESC }

// ParseSortDirection 解析 asc / desc（大小写不敏感）
func ParseSortDirection(s string) (SortDirection, bool) {
	d := SortDirection(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.IsValid()
}

// Attributes 按列名组织的属性
type Attributes = map[string]any

// Page 分页结果
type Page[T any] struct {
	Total       int64 `json:"total"`
	PerPage     int   `json:"per_page"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	From        int   `json:"from"`
	To          int   `json:"to"`
	Data        []T   `json:"data"`
}
