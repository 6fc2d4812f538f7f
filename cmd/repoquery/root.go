package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repokit/data/orm/repo"
	"repokit/errors"
)

// NewRootCommand 创建 repoquery 根命令
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repoquery",
		Short: "Query a database table through the generic repository",
		Long: `repoquery opens a database, builds a repository over one table and runs
column listing, pagination, datatable and filter queries against it.

Settings come from flags, REPOQUERY_* environment variables or --config.`,
		SilenceUsage: true,
	}
	bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newColumnsCommand())
	cmd.AddCommand(newPaginateCommand())
	cmd.AddCommand(newDatatableCommand())
	cmd.AddCommand(newFindCommand())
	return cmd
}

// withRuntime 加载配置并在命令结束后释放资源
func withRuntime(cmd *cobra.Command, fn func(rt *runtime) error) (err error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(cmd.ErrOrStderr()); err == nil {
			err = cerr
		}
	}()
	return fn(rt)
}

func newColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List the table's columns in storage order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(rt *runtime) error {
				cols, err := rt.repo.ColumnListing(cmd.Context())
				if err != nil {
					return err
				}
				for _, c := range cols {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
				return nil
			})
		},
	}
}

func newPaginateCommand() *cobra.Command {
	var (
		page         int
		perPage      int
		search       string
		searchFields []string
		orderBy      string
	)
	cmd := &cobra.Command{
		Use:   "paginate",
		Short: "Print one page of rows as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(rt *runtime) error {
				r := rt.repo
				if orderBy != "" {
					col, dir := splitOrder(orderBy)
					r = r.OrderBy(col, dir)
				}
				result, err := r.Pagination(cmd.Context(), page, perPage, searchFields, search)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, 1-based")
	cmd.Flags().IntVar(&perPage, "per-page", 15, "rows per page; 0 returns every row")
	cmd.Flags().StringVar(&search, "search", "", "substring searched across --search-field columns")
	cmd.Flags().StringSliceVar(&searchFields, "search-field", nil, "column searched by --search (repeatable)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "order column, optionally followed by :asc or :desc")
	return cmd
}

func newDatatableCommand() *cobra.Command {
	var (
		request string
		ilike   bool
	)
	cmd := &cobra.Command{
		Use:   "datatable",
		Short: "Run a datatable request read from --request or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readRequest(cmd.InOrStdin(), request)
			if err != nil {
				return err
			}
			req, err := repo.ParseDatatableJSON(data)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(rt *runtime) error {
				run := rt.repo.Datatable
				if ilike {
					run = rt.repo.DatatableIlike
				}
				resp, err := run(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&request, "request", "-", "request JSON, @file to read a file, - for stdin")
	cmd.Flags().BoolVar(&ilike, "ilike", false, "use case-insensitive matching for searches")
	return cmd
}

func newFindCommand() *cobra.Command {
	var (
		params  []string
		columns []string
		orderBy string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find rows matching filter parameters such as age_gte=18 or name_like=bo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok || k == "" {
					return errors.NewErrorf(errors.ErrCodeInvalidInput, "filter %q must be key=value", p)
				}
				values[k] = v
			}
			return withRuntime(cmd, func(rt *runtime) error {
				r := rt.repo.Where(rt.repo.ParseFilters(values)...)
				if orderBy != "" {
					col, dir := splitOrder(orderBy)
					r = r.OrderBy(col, dir)
				}
				if limit > 0 {
					r = r.Take(limit)
				}
				rows, err := r.Get(cmd.Context(), columns...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().StringArrayVar(&params, "filter", nil, "filter as key=value, keys may end in _in _not_in _like _gt _gte _lt _lte _ne")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "columns to select (default all)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "order column, optionally followed by :asc or :desc")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows; 0 means no limit")
	return cmd
}

func splitOrder(s string) (string, string) {
	col, dir, ok := strings.Cut(s, ":")
	if !ok {
		return col, "asc"
	}
	return col, dir
}

// readRequest 读取请求：- 为标准输入，@path 为文件，其余按原文处理
func readRequest(stdin io.Reader, src string) ([]byte, error) {
	switch {
	case src == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(src, "@"):
		data, err := os.ReadFile(strings.TrimPrefix(src, "@"))
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "read request file")
		}
		return data, nil
	default:
		return []byte(src), nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
