// Package testutil provides an in-memory SQL database with the server schema
// for repository, service and handler tests.
package testutil

import (
	_ "embed"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

//go:embed schema_sqlite.sql
var schema string

// NewDB opens a fresh in-memory sqlite database. The pool is pinned to one
// connection, so callers must not issue queries on db while a tx is open.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:?_foreign_keys=1")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

// SeedUser inserts a user and returns its id.
func SeedUser(t *testing.T, db *sqlx.DB, nickname string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowx(db.Rebind(
		`INSERT INTO users (email, nickname, password_hashed, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		fmt.Sprintf("%s@test.io", nickname), nickname, "x", time.Now().UTC(),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// DefaultCategoryID is the id of the first seeded category, "free".
const DefaultCategoryID = 1

// SeedPost inserts a post owned by userID in the default category and
// returns its id.
func SeedPost(t *testing.T, db *sqlx.DB, userID int64) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowx(db.Rebind(
		`INSERT INTO posts (user_id, category_id, title, content, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		userID, DefaultCategoryID, "title", "content", time.Now().UTC(),
	).Scan(&id)
	require.NoError(t, err)
	return id
}
