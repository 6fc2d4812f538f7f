package repo

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ParseDatatableJSON 解析 JSON 形式的表格请求；数字与布尔值可以是字符串
func ParseDatatableJSON(data []byte) (*DatatableRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidInput("datatable: malformed json: %v", err)
	}
	return decodeDatatable(raw)
}

// ParseDatatableForm 解析表单编码的表格请求（columns[0][data]=id&order[0][dir]=asc）
func ParseDatatableForm(values url.Values) (*DatatableRequest, error) {
	root := map[string]any{}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path, err := splitFormKey(key)
		if err != nil {
			return nil, err
		}
		vals := values[key]
		if path[len(path)-1] == "" {
			list := make([]any, 0, len(vals))
			for _, v := range vals {
				list = append(list, v)
			}
			if err := setPath(root, path[:len(path)-1], list); err != nil {
				return nil, err
			}
			continue
		}
		if len(vals) == 0 {
			continue
		}
		if err := setPath(root, path, vals[0]); err != nil {
			return nil, err
		}
	}
	normalized, err := normalizeForm(root)
	if err != nil {
		return nil, err
	}
	raw, ok := normalized.(map[string]any)
	if !ok {
		return nil, invalidInput("datatable: form has no named fields")
	}
	return decodeDatatable(raw)
}

func decodeDatatable(raw map[string]any) (*DatatableRequest, error) {
	req := &DatatableRequest{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           req,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, invalidInput("datatable: %v", err)
	}
	return req, nil
}

// splitFormKey columns[0][search][value] → [columns 0 search value]；结尾 [] 表示列表
func splitFormKey(key string) ([]string, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return []string{key}, nil
	}
	path := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return nil, invalidInput("datatable: malformed form key %q", key)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, invalidInput("datatable: malformed form key %q", key)
		}
		seg := rest[1:end]
		rest = rest[end+1:]
		if seg == "" && rest != "" {
			return nil, invalidInput("datatable: [] must be the last segment in %q", key)
		}
		path = append(path, seg)
	}
	if path[0] == "" {
		return nil, invalidInput("datatable: malformed form key %q", key)
	}
	return path, nil
}

func setPath(node map[string]any, path []string, value any) error {
	for i, seg := range path {
		if i == len(path)-1 {
			node[seg] = value
			return nil
		}
		child, ok := node[seg]
		if !ok {
			next := map[string]any{}
			node[seg] = next
			node = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			return invalidInput("datatable: form key %q is both a value and a group", strings.Join(path[:i+1], "."))
		}
		node = next
	}
	return nil
}

// normalizeForm 将键全为数字的 map 转成切片；下标必须从 0 连续，否则 order[n][column] 会错位
func normalizeForm(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	for k, child := range m {
		normalized, err := normalizeForm(child)
		if err != nil {
			return nil, err
		}
		m[k] = normalized
	}
	if len(m) == 0 {
		return m, nil
	}

	indexes := make([]int, 0, len(m))
	for k := range m {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			return m, nil
		}
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)
	list := make([]any, 0, len(indexes))
	for i, n := range indexes {
		if n != i {
			return nil, invalidInput("datatable: form index %d given without index %d", n, i)
		}
		list = append(list, m[strconv.Itoa(n)])
	}
	return list, nil
}
