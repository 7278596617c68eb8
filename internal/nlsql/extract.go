package nlsql

import (
	"regexp"
	"strings"
)

var (
	fenceSQL     = regexp.MustCompile("(?i)```sql\\s*\\n")
	fenceNewline = regexp.MustCompile("```\\s*\\n")
	statementKW  = regexp.MustCompile(`(?i)\b(with|select)\b`)
)

// Extract reduces raw model output to a bare statement: code fences are removed, prose
// before the first WITH or SELECT is dropped and anything after the last semicolon is cut.
// Output without a statement keyword is returned trimmed and is left for validation to
// reject. Extract(Extract(s)) == Extract(s).
func Extract(raw string) string {
	s := strings.TrimSpace(raw)
	s = fenceSQL.ReplaceAllString(s, "")
	s = fenceNewline.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")

	if loc := statementKW.FindStringIndex(s); loc != nil {
		s = s[loc[0]:]
	}
	if i := strings.LastIndex(s, ";"); i >= 0 {
		s = s[:i+1]
	}
	return strings.TrimSpace(s)
}
