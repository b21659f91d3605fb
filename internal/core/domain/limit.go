package domain

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// enforceLimit bounds the number of rows a SELECT may return. It never
// rejects: bounding result size is resource protection, not a correctness
// gate, so every path degrades to returning some runnable query text.
//
//   - no LIMIT clause: append one textually, preserving the original text;
//   - literal LIMIT above maxLimit: rewrite the outer statement's own limit
//     node in the tree and deparse, so a numerically equal literal inside a
//     sub-select is never touched;
//   - literal LIMIT within bounds, or a parameter/expression: unchanged.
func enforceLimit(sql string, tree *pg_query.ParseResult, sel *pg_query.SelectStmt, maxLimit int) string {
	if sel.LimitCount == nil {
		trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
		return fmt.Sprintf("%s LIMIT %d", trimmed, maxLimit)
	}

	lit, ok := literalInt(sel.LimitCount)
	if !ok || lit <= int64(maxLimit) {
		return sql
	}

	setLiteralInt(sel.LimitCount, int64(maxLimit))
	rewritten, err := pg_query.Deparse(tree)
	if err != nil {
		// Deparse of a tree we just parsed should not fail; if it somehow
		// does, the original text still carries its own (oversized) LIMIT.
		return sql
	}
	return rewritten
}

// literalInt extracts the value of an integer constant node.
func literalInt(node *pg_query.Node) (int64, bool) {
	c, ok := node.Node.(*pg_query.Node_AConst)
	if !ok || c.AConst == nil || c.AConst.Isnull {
		return 0, false
	}
	ival, ok := c.AConst.Val.(*pg_query.A_Const_Ival)
	if !ok || ival.Ival == nil {
		return 0, false
	}
	return int64(ival.Ival.Ival), true
}

// setLiteralInt overwrites an integer constant node in place.
func setLiteralInt(node *pg_query.Node, v int64) {
	c, ok := node.Node.(*pg_query.Node_AConst)
	if !ok || c.AConst == nil {
		return
	}
	c.AConst.Val = &pg_query.A_Const_Ival{
		Ival: &pg_query.Integer{Ival: int32(v)},
	}
}
