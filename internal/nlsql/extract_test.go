package nlsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced with prose",
			in:   "Here is your query:\n```sql\nSELECT \"Party\" FROM election_loksabha_data LIMIT 5;\n```",
			want: `SELECT "Party" FROM election_loksabha_data LIMIT 5;`,
		},
		{
			name: "upper case fence and trailing commentary",
			in:   "```SQL\nWITH w AS (SELECT 1) SELECT * FROM w;\n```\nThis query counts winners.",
			want: "WITH w AS (SELECT 1) SELECT * FROM w;",
		},
		{
			name: "select before with",
			in:   "select x from election_loksabha_data with no terminator",
			want: "select x from election_loksabha_data with no terminator",
		},
		{
			name: "bare fence",
			in:   "```\nSELECT 1;\n```",
			want: "SELECT 1;",
		},
		{
			name: "no statement",
			in:   "  I cannot answer that.  ",
			want: "I cannot answer that.",
		},
		{
			name: "empty",
			in:   "```sql\n```",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.in))
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	inputs := []string{
		"Here is your query:\n```sql\nSELECT 1;\n```",
		"prose; more prose; SELECT a FROM t; trailing",
		"`````` SELECT ``` 1 ;;",
		"With respect, SELECT 1",
		"no keywords; at all;",
		"  \n\t",
		"```sql\nWITH a AS (SELECT 1) SELECT * FROM a\n```\n-- done",
	}
	for _, in := range inputs {
		once := Extract(in)
		assert.Equal(t, once, Extract(once), "input %q", in)
	}
}
