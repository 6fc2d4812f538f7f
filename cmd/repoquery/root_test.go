package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repokit/data/db/sqlite"
	"repokit/errors"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.db")
	db, err := sqlite.Open(path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.ExecDDL(ctx,
		`CREATE TABLE people (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, age INTEGER)`))
	for i, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		_, err := db.Exec(ctx, `INSERT INTO people (name, age) VALUES (?, ?)`, name, 20+i*5)
		require.NoError(t, err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestColumns(t *testing.T) {
	dsn := seedDatabase(t)
	out, _, err := execute(t, "", "columns", "--dsn", dsn, "--table", "people", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "id\nname\nage\n", out)
}

func TestPaginate(t *testing.T) {
	dsn := seedDatabase(t)
	out, _, err := execute(t, "", "paginate", "--dsn", dsn, "--table", "people",
		"--page", "2", "--per-page", "2", "--order-by", "id", "--log-level", "error")
	require.NoError(t, err)

	var page struct {
		Total       int64            `json:"total"`
		CurrentPage int              `json:"current_page"`
		LastPage    int              `json:"last_page"`
		From        int              `json:"from"`
		To          int              `json:"to"`
		Data        []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, 3, page.From)
	assert.Equal(t, 4, page.To)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "carol", page.Data[0]["name"])
	assert.Equal(t, "dave", page.Data[1]["name"])
}

func TestPaginate_Search(t *testing.T) {
	dsn := seedDatabase(t)
	out, _, err := execute(t, "", "paginate", "--dsn", dsn, "--table", "people",
		"--search", "a", "--search-field", "name", "--per-page", "0", "--log-level", "error")
	require.NoError(t, err)

	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, int64(3), page.Total)
}

func TestDatatable_Stdin(t *testing.T) {
	dsn := seedDatabase(t)
	req := `{
		"draw": 3,
		"columns": [{"data": "name", "name": "name", "searchable": true, "search": {"value": ""}}],
		"order": [{"column": 0, "dir": "desc"}],
		"start": 0,
		"length": 2,
		"search": {"value": "e"}
	}`
	out, _, err := execute(t, req, "datatable", "--dsn", dsn, "--table", "people", "--log-level", "error")
	require.NoError(t, err)

	var resp struct {
		Draw            int              `json:"draw"`
		Data            []map[string]any `json:"data"`
		RecordsTotal    int64            `json:"recordsTotal"`
		RecordsFiltered int64            `json:"recordsFiltered"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Draw)
	assert.Equal(t, int64(5), resp.RecordsTotal)
	assert.Equal(t, int64(3), resp.RecordsFiltered)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "erin", resp.Data[0]["name"])
	assert.Equal(t, "dave", resp.Data[1]["name"])
}

func TestDatatable_InvalidRequest(t *testing.T) {
	dsn := seedDatabase(t)
	_, _, err := execute(t, "", "datatable", "--dsn", dsn, "--table", "people", "--request", "{not json")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestFind(t *testing.T) {
	dsn := seedDatabase(t)
	out, _, err := execute(t, "", "find", "--dsn", dsn, "--table", "people",
		"--filter", "age_gte=30", "--filter", "name_like=r", "--column", "name",
		"--order-by", "age:desc", "--log-level", "error")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"name": "erin"}, rows[0])
	assert.Equal(t, map[string]any{"name": "carol"}, rows[1])

	_, _, err = execute(t, "", "find", "--dsn", dsn, "--table", "people", "--filter", "broken")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestConfigSources(t *testing.T) {
	dsn := seedDatabase(t)

	_, _, err := execute(t, "", "columns", "--table", "people")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfiguration, errors.GetErrorCode(err))

	t.Setenv("REPOQUERY_DSN", dsn)
	t.Setenv("REPOQUERY_LOG_LEVEL", "error")
	out, _, err := execute(t, "", "columns", "--table", "people")
	require.NoError(t, err)
	assert.Contains(t, out, "age")

	cfgPath := filepath.Join(t.TempDir(), "repoquery.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("table: people\nlog-level: error\n"), 0o644))
	out, _, err = execute(t, "", "columns", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "name")

	_, _, err = execute(t, "", "columns", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfiguration, errors.GetErrorCode(err))
}

func TestMetricsOutput(t *testing.T) {
	dsn := seedDatabase(t)
	_, errOut, err := execute(t, "", "columns", "--dsn", dsn, "--table", "people",
		"--metrics", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, errOut, "repokit_orm_operations_total{op=columns,status=ok,table=people} 1")
	assert.Contains(t, errOut, "repokit_orm_operation_duration_seconds{op=columns,table=people} 1")
}
