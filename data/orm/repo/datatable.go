package repo

import (
	"context"
	"strconv"
	"strings"

	"repokit/validation"
)

// DatatableSearch 搜索值；Regex 为 "true" 时做包含匹配，"false" 时做等值匹配，
// 其他非空值作为正则表达式本身
type DatatableSearch struct {
	Value string `json:"value"`
	Regex string `json:"regex"`
}

// DatatableColumn 表格列描述
type DatatableColumn struct {
	Data       string          `json:"data"`
	Name       string          `json:"name"`
	Searchable bool            `json:"searchable"`
	Orderable  *bool           `json:"orderable,omitempty"`
	Search     DatatableSearch `json:"search"`
}

// DatatableOrder 排序项，Column 为 Columns 下标
type DatatableOrder struct {
	Column int    `json:"column"`
	Dir    string `json:"dir"`
}

// DatatableRequest 表格查询请求（draw/columns/order/start/length/search）
type DatatableRequest struct {
	Draw      int               `json:"draw"`
	Columns   []DatatableColumn `json:"columns"`
	Order     []DatatableOrder  `json:"order"`
	Start     int               `json:"start"`
	Length    int               `json:"length"`
	Search    DatatableSearch   `json:"search"`
	With      []string          `json:"with,omitempty"`
	Join      [][]string        `json:"join,omitempty"`
	ColumnDef []string          `json:"columnDef,omitempty"`
}

// DatatableResponse 表格查询响应
type DatatableResponse[T any] struct {
	Draw            int   `json:"draw"`
	Data            []T   `json:"data"`
	RecordsTotal    int64 `json:"recordsTotal"`
	RecordsFiltered int64 `json:"recordsFiltered"`
}

// field 列对应的查询字段：name 优先，其次 data
func (c DatatableColumn) field() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Data
}

// Datatable 以 LIKE 做包含匹配的表格查询
func (r *Repo[T]) Datatable(ctx context.Context, req *DatatableRequest) (*DatatableResponse[T], error) {
	return r.datatable(ctx, req, OpLike)
}

// DatatableIlike 以 ILIKE 做包含匹配，用于区分大小写 LIKE 的数据库
func (r *Repo[T]) DatatableIlike(ctx context.Context, req *DatatableRequest) (*DatatableResponse[T], error) {
	return r.datatable(ctx, req, OpILike)
}

func (r *Repo[T]) datatable(ctx context.Context, req *DatatableRequest, like Operator) (*DatatableResponse[T], error) {
	if req == nil {
		return nil, invalidInput("datatable: nil request")
	}
	if err := validation.ValidateNonNegative(req.Start, "start"); err != nil {
		return nil, err
	}

	selects := append([]string(nil), req.ColumnDef...)
	var where []Filter
	var searchable []string
	for _, col := range req.Columns {
		if len(req.ColumnDef) == 0 && col.Name != "" {
			if col.Data != "" && col.Data != col.Name {
				selects = append(selects, col.Name+" AS "+col.Data)
			} else {
				selects = append(selects, col.Name)
			}
		}
		if f := columnSearch(col, like); f != nil {
			where = append(where, f)
		}
		if col.Searchable && col.field() != "" {
			searchable = append(searchable, col.field())
		}
	}

	q := r.prepare(r.current(), true)
	total, err := r.count(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(req.With) > 0 {
		q = q.With(req.With...)
	}
	if len(selects) > 0 {
		q = q.Select(selects...)
	}
	if len(req.Join) > 0 {
		q = q.JoinTuples(req.Join...)
	}
	if len(where) > 0 {
		q = q.Where(where...)
	}
	global := strings.TrimSpace(req.Search.Value)
	if global != "" && len(searchable) > 0 {
		ors := make([]Filter, 0, len(searchable))
		for _, field := range searchable {
			ors = append(ors, Compare{Field: field, Op: string(like), Value: "%" + global + "%"})
		}
		q = q.Where(Or(ors...))
	}

	filtered := total
	if len(where) > 0 || global != "" {
		if filtered, err = r.count(ctx, q); err != nil {
			return nil, err
		}
	}

	for i, o := range req.Order {
		if err := validation.ValidateIntRange(o.Column, "order.column", 0, len(req.Columns)-1); err != nil {
			return nil, err
		}
		col := req.Columns[o.Column]
		if col.Orderable != nil && !*col.Orderable {
			continue
		}
		dir, ok := ParseSortDirection(o.Dir)
		if !ok {
			return nil, validation.ValidateEnum(o.Dir, "order["+strconv.Itoa(i)+"].dir", []string{"asc", "desc"})
		}
		q = q.OrderBy(col.Data, string(dir))
	}

	if req.Start > 0 {
		q = q.Skip(req.Start)
	}
	if req.Length > 0 {
		q = q.Take(req.Length)
	}

	rows, err := r.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return &DatatableResponse[T]{
		Draw:            req.Draw,
		Data:            rows,
		RecordsTotal:    total,
		RecordsFiltered: filtered,
	}, nil
}

// columnSearch 单列搜索条件，无搜索值时返回 nil
func columnSearch(col DatatableColumn, like Operator) Filter {
	value := col.Search.Value
	if value == "" || col.field() == "" {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(col.Search.Regex)) {
	case "", "false", "0":
		return Equal{Field: col.field(), Value: value}
	case "true", "1":
		return Compare{Field: col.field(), Op: string(like), Value: "%" + value + "%"}
	default:
		return Compare{Field: col.field(), Op: string(OpRegexp), Value: col.Search.Regex}
	}
}
