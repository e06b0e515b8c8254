package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/schoolspace/database"
)

// BootstrapShared creates the shared schema (if missing) and applies the directory
// DDL in a single transaction, in this order:
//  1. shared/schools.sql
//  2. shared/school_memberships.sql
//
// SQL is embedded at build time so binaries stay self-contained. The helper is
// idempotent and intended for CLI bootstrap and tests.
func BootstrapShared(ctx context.Context, pool *pgxpool.Pool, sharedSchema string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap shared schema: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.SchoolsSQL)...)
	statements = append(statements, splitStatements(sqlassets.SchoolMembershipsSQL)...)

	if err := applyInNamespace(ctx, pool, sharedSchema, statements); err != nil {
		return fmt.Errorf("bootstrap shared schema: %w", err)
	}
	return nil
}

// BootstrapSchool creates a school namespace and its tables. Provisioning proper
// happens elsewhere; this exists for local seeding and integration tests.
func BootstrapSchool(ctx context.Context, pool *pgxpool.Pool, namespace string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap school %s: pool is required", namespace)
	}

	if err := applyInNamespace(ctx, pool, namespace, splitStatements(sqlassets.SchoolUsersSQL)); err != nil {
		return fmt.Errorf("bootstrap school %s: %w", namespace, err)
	}
	return nil
}

func applyInNamespace(ctx context.Context, pool *pgxpool.Pool, namespace string, statements []string) error {
	createSQL, err := createSchemaStatement(namespace)
	if err != nil {
		return err
	}
	bindSQL, bindArgs, err := namespaceBinding(namespace, true)
	if err != nil {
		return err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := tx.Exec(ctx, bindSQL, bindArgs...); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks a DDL file into statements. Full-line "--" comments are
// dropped; the files must not contain semicolons inside literals or bodies.
func splitStatements(sql string) []string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	raw := strings.Split(b.String(), ";")
	out := make([]string, 0, len(raw))
	for _, stmt := range raw {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
