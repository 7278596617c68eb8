package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultTable holds one row per candidate per constituency per election year.
const DefaultTable = "election_loksabha_data"

const (
	DefaultLimit = 5000
	MaxLimit     = 5000
)

// ErrInvalidField is returned for columns outside FilterFields.
var ErrInvalidField = errors.New("invalid field name")

// FilterFields are the columns exposed for distinct-value lookups.
var FilterFields = []string{"State_Name", "Year", "Sex", "Party", "Constituency_Name"}

// Columns lists the dataset columns in table order.
var Columns = []string{
	"Year", "State_Name", "Constituency_Name", "Candidate", "Sex", "Party", "Votes",
	"Is_Winner", "Position", "Turnout_Percentage", "Vote_Share_Percentage", "Margin",
	"Margin_Percentage", "Electors", "Valid_Votes", "Party_Type_TCPD", "MyNeta_education",
}

type Store struct {
	DB *sql.DB
	// Table defaults to DefaultTable when empty.
	Table string
	// ReadOnlyTx wraps Query in a READ ONLY transaction.
	ReadOnlyTx bool
}

func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db, Table: DefaultTable}, nil
}

func (s *Store) table() string {
	if s.Table == "" {
		return DefaultTable
	}
	return s.Table
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Election is one candidate's result in one constituency and year.
type Election struct {
	Year                *int64   `json:"Year"`
	StateName           *string  `json:"State_Name"`
	ConstituencyName    *string  `json:"Constituency_Name"`
	Candidate           *string  `json:"Candidate"`
	Sex                 *string  `json:"Sex"`
	Party               *string  `json:"Party"`
	Votes               *int64   `json:"Votes"`
	IsWinner            *int64   `json:"Is_Winner"`
	Position            *int64   `json:"Position"`
	TurnoutPercentage   *float64 `json:"Turnout_Percentage"`
	VoteSharePercentage *float64 `json:"Vote_Share_Percentage"`
	Margin              *int64   `json:"Margin"`
	MarginPercentage    *float64 `json:"Margin_Percentage"`
	Electors            *int64   `json:"Electors"`
	ValidVotes          *int64   `json:"Valid_Votes"`
	PartyTypeTCPD       *string  `json:"Party_Type_TCPD"`
	MyNetaEducation     *string  `json:"MyNeta_education"`
}

func (e *Election) scanDest() []any {
	return []any{
		&e.Year, &e.StateName, &e.ConstituencyName, &e.Candidate, &e.Sex, &e.Party, &e.Votes,
		&e.IsWinner, &e.Position, &e.TurnoutPercentage, &e.VoteSharePercentage, &e.Margin,
		&e.MarginPercentage, &e.Electors, &e.ValidVotes, &e.PartyTypeTCPD, &e.MyNetaEducation,
	}
}

// ElectionFilter narrows ListElections and CountElections. A zero value matches everything.
type ElectionFilter struct {
	Year           int
	YearStart      int
	YearEnd        int
	States         []string
	Parties        []string
	Genders        []string
	Constituencies []string
	Limit          int
	Offset         int
}

// Normalize clamps paging and drops blank list entries. Constituencies are upper-cased
// since they are matched case-insensitively.
func (f ElectionFilter) Normalize() ElectionFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.States = clean(f.States, false)
	f.Parties = clean(f.Parties, false)
	f.Genders = clean(f.Genders, false)
	f.Constituencies = clean(f.Constituencies, true)
	return f
}

func clean(in []string, upper bool) []string {
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if upper {
			v = strings.ToUpper(v)
		}
		out = append(out, v)
	}
	return out
}

// where renders the filter as a parameterized WHERE clause.
func (f ElectionFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	switch {
	case f.Year != 0:
		add(`"Year" = $%d`, f.Year)
	case f.YearStart != 0 && f.YearEnd != 0:
		add(`"Year" >= $%d`, f.YearStart)
		add(`"Year" <= $%d`, f.YearEnd)
	}
	if len(f.States) > 0 {
		add(`"State_Name" = ANY($%d)`, pq.Array(f.States))
	}
	if len(f.Parties) > 0 {
		add(`"Party" = ANY($%d)`, pq.Array(f.Parties))
	}
	if len(f.Genders) > 0 {
		add(`"Sex" = ANY($%d)`, pq.Array(f.Genders))
	}
	if len(f.Constituencies) > 0 {
		add(`UPPER("Constituency_Name") = ANY($%d)`, pq.Array(f.Constituencies))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func quotedColumns() string {
	q := make([]string, len(Columns))
	for i, c := range Columns {
		q[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(q, ", ")
}

// ListElections returns one page of records ordered by year (newest first) then state.
func (s *Store) ListElections(ctx context.Context, f ElectionFilter) ([]Election, error) {
	f = f.Normalize()
	where, args := f.where()
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY "Year" DESC, "State_Name" ASC LIMIT $%d OFFSET $%d`,
		quotedColumns(), pq.QuoteIdentifier(s.table()), where, n+1, n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	out := []Election{}
	for rows.Next() {
		var e Election
		if err := rows.Scan(e.scanDest()...); err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountElections returns the number of records matching f, ignoring paging.
func (s *Store) CountElections(ctx context.Context, f ElectionFilter) (int64, error) {
	where, args := f.Normalize().where()
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, pq.QuoteIdentifier(s.table()), where)
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count elections: %w", err)
	}
	return n, nil
}

// ValidField reports whether field is one of FilterFields.
func ValidField(field string) bool {
	for _, f := range FilterFields {
		if f == field {
			return true
		}
	}
	return false
}

// UniqueValues returns the sorted distinct non-null values of field.
func (s *Store) UniqueValues(ctx context.Context, field string) ([]any, error) {
	if !ValidField(field) {
		return nil, ErrInvalidField
	}
	col := pq.QuoteIdentifier(field)
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s ASC`,
		col, pq.QuoteIdentifier(s.table()), col, col)
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unique %s: %w", field, err)
	}
	defer rows.Close()

	out := []any{}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", field, err)
		}
		out = append(out, normalizeValue(v))
	}
	return out, rows.Err()
}

// FilterOptions returns UniqueValues for every filter field.
func (s *Store) FilterOptions(ctx context.Context) (map[string][]any, error) {
	out := make(map[string][]any, len(FilterFields))
	for _, f := range FilterFields {
		vals, err := s.UniqueValues(ctx, f)
		if err != nil {
			return nil, err
		}
		out[f] = vals
	}
	return out, nil
}

// ListTables lists the tables in the public schema.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
