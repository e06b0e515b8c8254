package persistence

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// bindStatement is the only statement in the codebase that changes a
// connection's active namespace. Session-level bindings persist until the next
// bind or reset; transaction-local ones revert on commit or rollback.
const bindStatement = `SELECT set_config('search_path', $1, $2)`

// namespaceBinding validates ns and returns the statement and arguments that make
// it the connection's only search_path entry. Invalid identifiers are rejected
// before any SQL is produced.
func namespaceBinding(ns string, txLocal bool) (string, []any, error) {
	if err := tenant.ValidateNamespace(ns); err != nil {
		return "", nil, err
	}
	return bindStatement, []any{pgx.Identifier{ns}.Sanitize(), txLocal}, nil
}

// qualifiedTable returns "<schema>"."<table>" for statements that must address the
// shared namespace explicitly regardless of the connection binding.
func qualifiedTable(schema, table string) (string, error) {
	if err := tenant.ValidateNamespace(schema); err != nil {
		return "", err
	}
	table = strings.TrimSpace(table)
	if err := tenant.ValidateNamespace(table); err != nil {
		return "", fmt.Errorf("invalid table name %q: %w", table, err)
	}
	return pgx.Identifier{schema, table}.Sanitize(), nil
}

// createSchemaStatement returns the idempotent CREATE SCHEMA statement for ns.
func createSchemaStatement(ns string) (string, error) {
	if err := tenant.ValidateNamespace(ns); err != nil {
		return "", err
	}
	return "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{ns}.Sanitize(), nil
}
