// Package sqlguard decides whether a model-generated SQL statement is allowed to run.
//
// Validation happens in three passes. The safety pass works on comment-stripped text and
// rejects statement chaining and any deny-listed keyword. The structural pass checks the
// statement shape (leading keyword, table reference, CTE form). The grammar pass parses
// the statement with the PostgreSQL parser and allow-lists plain SELECT trees.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTable is the only table generated statements may reference.
const DefaultTable = "election_loksabha_data"

// DenyList holds statement-level keywords that mutate data, alter schema, control
// transactions or execute procedures. Order matters: the first hit is reported.
var DenyList = []string{
	"insert", "update", "delete", "drop", "truncate",
	"alter", "create", "replace", "merge", "grant",
	"revoke", "exec", "execute", "call", "backup",
	"restore", "rename", "commit", "rollback",
}

var (
	lineComment  = regexp.MustCompile(`(?m)--.*$`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespace   = regexp.MustCompile(`\s+`)

	leadingKeyword = regexp.MustCompile(`(?i)^(select|with)\b`)
	selectWord     = regexp.MustCompile(`(?i)\bselect\b`)
	asWord         = regexp.MustCompile(`(?i)\bas\b`)
	withPrefix     = regexp.MustCompile(`(?i)^with\b`)

	denyPatterns = compileDenyList(DenyList)
)

type denyPattern struct {
	keyword string
	re      *regexp.Regexp
}

func compileDenyList(words []string) []denyPattern {
	out := make([]denyPattern, 0, len(words))
	for _, w := range words {
		out = append(out, denyPattern{keyword: w, re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)})
	}
	return out
}

// Guard validates generated statements against a single permitted table.
type Guard struct {
	table        string
	grammarCheck bool
}

// Option configures a Guard.
type Option func(*Guard)

// WithGrammarCheck toggles the parser-backed allow-list pass.
func WithGrammarCheck(enabled bool) Option {
	return func(g *Guard) { g.grammarCheck = enabled }
}

// New returns a Guard for table. An empty table falls back to DefaultTable.
func New(table string, opts ...Option) *Guard {
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	g := &Guard{table: table, grammarCheck: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Table returns the permitted table name.
func (g *Guard) Table() string { return g.table }

// Validate runs the safety, structural and (when enabled) grammar passes in that order and
// returns the first rejection as an *Error.
func (g *Guard) Validate(stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return &Error{Kind: KindExtractionEmpty, Reason: "Empty query"}
	}
	if err := g.CheckSafety(stmt); err != nil {
		return err
	}
	if err := g.CheckStructure(stmt); err != nil {
		return err
	}
	if g.grammarCheck {
		return CheckGrammar(stmt)
	}
	return nil
}

// Normalize lower-cases stmt, removes line and block comments and collapses whitespace.
func Normalize(stmt string) string {
	s := strings.ToLower(strings.TrimSpace(stmt))
	s = lineComment.ReplaceAllString(s, "")
	s = blockComment.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CheckSafety is the deny-list pass. Chaining is checked before keywords so that a
// chained second statement is reported as chaining.
func (g *Guard) CheckSafety(stmt string) error {
	clean := Normalize(stmt)

	if n := strings.Count(clean, ";"); n > 1 || (n == 1 && !strings.HasSuffix(clean, ";")) {
		return &Error{Kind: KindStatementChaining, Reason: "Multiple queries or query chaining not allowed"}
	}

	for _, p := range denyPatterns {
		if p.re.MatchString(clean) {
			kw := strings.ToUpper(p.keyword)
			return &Error{
				Kind:    KindUnsafeOperation,
				Reason:  fmt.Sprintf("Query contains forbidden operation: %s", kw),
				Keyword: kw,
			}
		}
	}

	if !leadingKeyword.MatchString(clean) {
		return unsafeErr("Only SELECT queries are allowed")
	}
	return nil
}

// CheckStructure is the shape pass over the raw (trimmed) statement.
func (g *Guard) CheckStructure(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return &Error{Kind: KindExtractionEmpty, Reason: "Empty query"}
	}
	if !leadingKeyword.MatchString(trimmed) {
		return syntaxErr("Query must start with SELECT or WITH")
	}
	if !selectWord.MatchString(trimmed) {
		return syntaxErr("Query missing SELECT keyword")
	}
	if !strings.Contains(strings.ToLower(trimmed), strings.ToLower(g.table)) {
		return syntaxErr(fmt.Sprintf("Query must reference table %q", g.table))
	}
	if withPrefix.MatchString(trimmed) {
		if !asWord.MatchString(trimmed) {
			return syntaxErr("WITH clause missing AS keyword")
		}
		if !strings.Contains(trimmed, "(") || !strings.Contains(trimmed, ")") {
			return syntaxErr("WITH clause missing parentheses")
		}
	}
	return nil
}
