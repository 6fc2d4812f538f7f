package repo

import (
	"context"
	"strings"
)

// Pagination 分页查询。
//
// search 非空时在 searchFields 上做包含匹配，多个字段之间为 OR。
// perPage 为 0 时不分页，返回全部记录，from 固定为 1，to 为总数，current_page 回显请求的页码；
// page 小于 1 按 1 处理。
func (r *Repo[T]) Pagination(ctx context.Context, page, perPage int, searchFields []string, search string) (*Page[T], error) {
	if perPage < 0 {
		return nil, invalidInput("pagination: per page must not be negative, got %d", perPage)
	}
	if page < 1 {
		page = 1
	}

	q := r.readQuery(nil)
	if search = strings.TrimSpace(search); search != "" && len(searchFields) > 0 {
		ors := make([]Filter, 0, len(searchFields))
		for _, field := range searchFields {
			ors = append(ors, Contains(field, search))
		}
		q = q.Where(Or(ors...))
	}

	total, err := r.count(ctx, q)
	if err != nil {
		return nil, err
	}

	result := &Page[T]{Total: total, PerPage: perPage, CurrentPage: page}
	if perPage == 0 {
		rows, err := r.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		result.LastPage = 1
		result.From = 1
		result.To = int(total)
		result.Data = rows
		return result, nil
	}

	result.To = page * perPage
	result.From = result.To - perPage + 1
	result.LastPage = int((total + int64(perPage) - 1) / int64(perPage))
	if result.LastPage < 1 {
		result.LastPage = 1
	}

	rows, err := r.fetch(ctx, q.Skip(result.From-1).Take(perPage))
	if err != nil {
		return nil, err
	}
	result.Data = rows
	return result, nil
}
