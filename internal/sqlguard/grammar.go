package sqlguard

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// CheckGrammar parses stmt with the PostgreSQL parser and accepts only a single plain
// SELECT (set operations included). SELECT INTO, row locking and data-modifying CTEs are
// rejected even though they start with SELECT or WITH.
func CheckGrammar(stmt string) error {
	tree, err := pg_query.Parse(stmt)
	if err != nil {
		return syntaxErr(fmt.Sprintf("Query could not be parsed: %v", err))
	}
	switch n := len(tree.GetStmts()); {
	case n == 0:
		return &Error{Kind: KindExtractionEmpty, Reason: "Empty query"}
	case n > 1:
		return &Error{Kind: KindStatementChaining, Reason: "Multiple queries or query chaining not allowed"}
	}
	sel := tree.GetStmts()[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return unsafeErr("Only SELECT queries are allowed")
	}
	return checkSelect(sel)
}

func checkSelect(sel *pg_query.SelectStmt) error {
	if sel == nil {
		return nil
	}
	if sel.GetIntoClause() != nil {
		return unsafeErr("SELECT INTO is not allowed")
	}
	if len(sel.GetLockingClause()) > 0 {
		return unsafeErr("Row locking clauses are not allowed")
	}
	for _, node := range sel.GetWithClause().GetCtes() {
		cte := node.GetCommonTableExpr()
		if cte == nil {
			continue
		}
		body := cte.GetCtequery().GetSelectStmt()
		if body == nil {
			return unsafeErr(fmt.Sprintf("CTE %q is not a SELECT", cte.GetCtename()))
		}
		if err := checkSelect(body); err != nil {
			return err
		}
	}
	if err := checkSelect(sel.GetLarg()); err != nil {
		return err
	}
	return checkSelect(sel.GetRarg())
}
