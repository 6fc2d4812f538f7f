package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBConfig_DataSourceName(t *testing.T) {
	dsn, err := DBConfig{Driver: "sqlite", Database: ":memory:"}.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = DBConfig{Driver: "mysql", Host: "db", Username: "u", Password: "p", Database: "app", ParseTime: true}.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(db:3306)/app?charset=utf8mb4&parseTime=true", dsn)

	dsn, err = DBConfig{Driver: "postgres", Host: "pg", Username: "u", Password: "p", Database: "app", SSLMode: "disable"}.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@pg:5432/app?sslmode=disable", dsn)

	dsn, err = DBConfig{Driver: "postgres", DSN: "host=x"}.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, "host=x", dsn)

	_, err = DBConfig{Driver: "oracle"}.DataSourceName()
	assert.Error(t, err)
	_, err = DBConfig{Driver: "sqlite"}.DataSourceName()
	assert.Error(t, err)
}
