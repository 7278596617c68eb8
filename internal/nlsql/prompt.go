package nlsql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
	"github.com/mohammad-safakhou/loksabha/internal/valueindex"
)

// PromptBuilder renders the two prompts of a query attempt. It has no side effects.
type PromptBuilder struct {
	schema   string
	table    string
	examples []Example
}

// NewPromptBuilder creates a PromptBuilder whose schema text and worked examples name
// table. An empty table means sqlguard.DefaultTable.
func NewPromptBuilder(table string) *PromptBuilder {
	table = strings.TrimSpace(table)
	if table == "" {
		table = sqlguard.DefaultTable
	}
	return &PromptBuilder{
		schema:   onTable(SchemaContext, table),
		table:    table,
		examples: ExamplesFor(table),
	}
}

// ExamplesFor returns DefaultExamples rewritten to query table.
func ExamplesFor(table string) []Example {
	out := make([]Example, len(DefaultExamples))
	for i, e := range DefaultExamples {
		out[i] = Example{Question: e.Question, SQL: onTable(e.SQL, table)}
	}
	return out
}

func onTable(text, table string) string {
	if table == sqlguard.DefaultTable {
		return text
	}
	return strings.ReplaceAll(text, sqlguard.DefaultTable, table)
}

// BuildQueryPrompt asks the model for one read-only statement answering question.
// hints list canonical dataset spellings found in the question.
func (pb *PromptBuilder) BuildQueryPrompt(question string, hints []valueindex.Hit) string {
	var ex strings.Builder
	for _, e := range pb.examples {
		fmt.Fprintf(&ex, "Question: %q\nQuery: %s\n\n", e.Question, e.SQL)
	}

	var known string
	if len(hints) > 0 {
		var b strings.Builder
		b.WriteString("\nKNOWN VALUES REFERENCED IN THE QUESTION (use these exact spellings):\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %q = '%s'\n", h.Field, strings.ReplaceAll(h.Value, "'", "''"))
		}
		known = b.String()
	}

	return fmt.Sprintf(`You are an expert PostgreSQL analyst for Indian Lok Sabha election data.

%s%s
USER QUESTION: %q

INSTRUCTIONS:
1. Write one PostgreSQL query against the "%[4]s" table only
2. Quote every column name exactly as listed, with double quotes (e.g. "Year", "State_Name")
3. State names use underscores (e.g. 'Uttar_Pradesh')
4. Each row is a CANDIDATE, not a constituency; count seats with "Is_Winner" = 1
5. For the latest election use "Year" = 2019
6. For "highest", "most" or "top" use ORDER BY ... DESC LIMIT
7. Compare years with CTEs (WITH clause); never put window functions in WHERE or JOIN conditions
8. For "consecutive elections" compare 2014 and 2019
9. ALWAYS include a LIMIT clause (at most 100 rows)
10. Reply with the SQL query only: no explanation, no markdown

EXAMPLES:

%sNow write the SQL query for the user's question:`, pb.schema, known, question, pb.table, ex.String())
}

// BuildSummaryPrompt asks the model to answer question from a preview of the result rows.
func (pb *PromptBuilder) BuildSummaryPrompt(question string, preview []map[string]any, total int) string {
	b, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		b = []byte(fmt.Sprintf("%v", preview))
	}
	return fmt.Sprintf(`The user asked: %q

Here are the SQL query results (showing first %d rows):
%s

Total rows returned: %d

Provide a clear, concise answer to the user's question based on these results.
Format your response in 2-3 paragraphs maximum.
If there are interesting patterns or insights, highlight them.`, question, len(preview), b, total)
}
