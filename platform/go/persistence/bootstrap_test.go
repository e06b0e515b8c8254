package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	sqlassets "github.com/zenGate-Global/schoolspace/database"
)

func TestSplitStatementsDropsCommentsAndBlanks(t *testing.T) {
	stmts := splitStatements(`
-- header comment; with a semicolon
CREATE TABLE a (id INT);

  -- indented comment
CREATE INDEX a_idx ON a (id);
`)
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX a_idx ON a (id)"}, stmts)
}

func TestEmbeddedDDLSplitsIntoStatements(t *testing.T) {
	require.Len(t, splitStatements(sqlassets.SchoolsSQL), 4)
	require.Len(t, splitStatements(sqlassets.SchoolMembershipsSQL), 2)
	require.Len(t, splitStatements(sqlassets.SchoolUsersSQL), 2)
}

func TestCreateSchemaStatementRejectsInvalidNamespace(t *testing.T) {
	_, err := createSchemaStatement("school_oak; DROP TABLE schools")
	require.Error(t, err)

	sql, err := createSchemaStatement("school_oak")
	require.NoError(t, err)
	require.Equal(t, `CREATE SCHEMA IF NOT EXISTS "school_oak"`, sql)
}

func TestNamespaceBinding(t *testing.T) {
	sql, args, err := namespaceBinding("school_oak", false)
	require.NoError(t, err)
	require.Equal(t, bindStatement, sql)
	require.Equal(t, []any{`"school_oak"`, false}, args)

	_, _, err = namespaceBinding(`school_oak", public`, true)
	require.Error(t, err)
}
