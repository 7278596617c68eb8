package sqlguard

import "fmt"

// Kind classifies a rejected statement.
type Kind string

const (
	KindExtractionEmpty   Kind = "ExtractionEmpty"
	KindSyntaxInvalid     Kind = "SyntaxInvalid"
	KindUnsafeOperation   Kind = "UnsafeOperation"
	KindStatementChaining Kind = "StatementChaining"
)

// Error is returned when a generated statement fails validation.
type Error struct {
	Kind   Kind
	Reason string
	// Keyword is the offending deny-listed keyword, upper-cased, when Kind is UnsafeOperation.
	Keyword string
}

func (e *Error) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Keyword, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unsafe reports whether the statement was rejected by the safety pass rather than the
// structural one. Callers surface the two differently.
func (e *Error) Unsafe() bool {
	return e.Kind == KindUnsafeOperation || e.Kind == KindStatementChaining
}

func syntaxErr(reason string) *Error {
	return &Error{Kind: KindSyntaxInvalid, Reason: reason}
}

func unsafeErr(reason string) *Error {
	return &Error{Kind: KindUnsafeOperation, Reason: reason}
}
