package dialect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind_Postgres(t *testing.T) {
	d := New("postgres")
	got := d.Rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)")
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", got)
}

func TestRebind_SkipsStringLiterals(t *testing.T) {
	d := New("postgresql")
	got := d.Rebind("SELECT * FROM t WHERE note = 'what?' AND id = ?")
	assert.Equal(t, "SELECT * FROM t WHERE note = 'what?' AND id = $1", got)
}

func TestRebind_NoChangeForMySQLSQLite(t *testing.T) {
	orig := "DELETE FROM t WHERE id = ? AND name = ?"
	for _, name := range []string{"mysql", "sqlite3", "unknown"} {
		assert.Equal(t, orig, New(name).Rebind(orig), name)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`users`.`name`", New("mysql").QuoteIdentifier("users.name"))
	assert.Equal(t, `"users".*`, New("sqlite").QuoteIdentifier("users.*"))
	assert.Equal(t, "users.name", New("").QuoteIdentifier("users.name"))
}

func TestLike(t *testing.T) {
	pg := New("postgres")
	lite := New("sqlite")

	assert.Equal(t, "name LIKE ?", lite.Like("name", false, false))
	assert.Equal(t, "name NOT LIKE ?", pg.Like("name", true, false))
	assert.Equal(t, "name ILIKE ?", pg.Like("name", false, true))
	assert.Equal(t, "name NOT ILIKE ?", pg.Like("name", true, true))
	assert.Equal(t, "LOWER(name) LIKE LOWER(?)", lite.Like("name", false, true))
	assert.Equal(t, "LOWER(name) NOT LIKE LOWER(?)", New("mysql").Like("name", true, true))
}

func TestRegexp(t *testing.T) {
	assert.Equal(t, "name ~ ?", New("postgres").Regexp("name", false))
	assert.Equal(t, "name !~ ?", New("postgres").Regexp("name", true))
	assert.Equal(t, "name REGEXP ?", New("sqlite").Regexp("name", false))
	assert.Equal(t, "name NOT REGEXP ?", New("mysql").Regexp("name", true))
}

func TestRandomFunc(t *testing.T) {
	assert.Equal(t, "RAND()", New("mysql").RandomFunc())
	assert.Equal(t, "RANDOM()", New("sqlite").RandomFunc())
	assert.Equal(t, "RANDOM()", New("postgres").RandomFunc())
}

func TestColumnListingQuery(t *testing.T) {
	q, args, ok := New("sqlite").ColumnListingQuery("users")
	assert.True(t, ok)
	assert.Contains(t, q, "pragma_table_info")
	assert.Equal(t, []any{"users"}, args)

	_, args, ok = New("postgres").ColumnListingQuery("users")
	assert.True(t, ok)
	assert.Equal(t, []any{"public", "users"}, args)

	_, args, ok = New("mysql").ColumnListingQuery("shop.users")
	assert.True(t, ok)
	assert.Equal(t, []any{"shop", "users"}, args)

	_, _, ok = New("oracle").ColumnListingQuery("users")
	assert.False(t, ok)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, New("sqlite").IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	assert.True(t, New("postgres").IsUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`)))
	assert.True(t, New("mysql").IsUniqueViolation(errors.New("Error 1062: Duplicate entry 'a' for key 'email'")))
	assert.False(t, New("sqlite").IsUniqueViolation(errors.New("no such table: users")))
	assert.False(t, New("sqlite").IsUniqueViolation(nil))
}

func TestCapabilities(t *testing.T) {
	assert.True(t, New("postgres").SupportsReturning())
	assert.False(t, New("sqlite").SupportsReturning())
	assert.True(t, New("mysql").SupportsDeleteLimit())
	assert.False(t, New("postgres").SupportsDeleteLimit())
	assert.Equal(t, NameSQLite, New(" SQLite ").Name())
}
