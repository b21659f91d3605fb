package domain

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Statement kinds reported by the structural check.
const (
	KindSelect      = "select"
	KindInsert      = "insert"
	KindUpdate      = "update"
	KindDelete      = "delete"
	KindDDL         = "ddl"
	KindTransaction = "transaction-control"
	KindOther       = "other"
)

// parseSingleSelect parses the SQL under the given dialect and returns the
// parse tree together with its root SELECT node. It is the authoritative
// check behind the lexical prefilter: anything the parser rejects, or whose
// root is not a single SELECT statement, is refused here.
func parseSingleSelect(sql, dialect string) (*pg_query.ParseResult, *pg_query.SelectStmt, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
	default:
		return nil, nil, rejected(ReasonParseFailure, fmt.Sprintf("unsupported dialect %q", dialect))
	}

	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, nil, rejected(ReasonParseFailure, err.Error())
	}

	if tree == nil || len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil {
		return nil, nil, rejected(ReasonParseFailure, "empty parse tree")
	}
	if len(tree.Stmts) > 1 {
		return nil, nil, rejected(ReasonNonSelect, "multi-statement")
	}

	root := tree.Stmts[0].Stmt
	sel, ok := root.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return nil, nil, rejected(ReasonNonSelect, statementKind(root))
	}

	return tree, sel.SelectStmt, nil
}

// statementKind classifies a parse tree root for rejection messages.
func statementKind(node *pg_query.Node) string {
	switch node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return KindSelect
	case *pg_query.Node_InsertStmt:
		return KindInsert
	case *pg_query.Node_UpdateStmt:
		return KindUpdate
	case *pg_query.Node_DeleteStmt:
		return KindDelete
	case *pg_query.Node_TransactionStmt:
		return KindTransaction
	case *pg_query.Node_CreateStmt,
		*pg_query.Node_CreateTableAsStmt,
		*pg_query.Node_CreateSchemaStmt,
		*pg_query.Node_AlterTableStmt,
		*pg_query.Node_DropStmt,
		*pg_query.Node_TruncateStmt,
		*pg_query.Node_IndexStmt,
		*pg_query.Node_ViewStmt,
		*pg_query.Node_GrantStmt:
		return KindDDL
	default:
		return KindOther
	}
}
