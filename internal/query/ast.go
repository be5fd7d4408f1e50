// Package query parses document-search style query objects into a typed
// clause tree and lowers that tree into a parameterized SQL predicate
// against one catalog table. It also scores fetched rows by term
// frequency.
package query

// Kind names a clause by the key it is written under.
type Kind string

const (
	KindMatch             Kind = "match"
	KindMatchPhrase       Kind = "match_phrase"
	KindMultiMatch        Kind = "multi_match"
	KindBool              Kind = "bool"
	KindTerm              Kind = "term"
	KindTerms             Kind = "terms"
	KindRange             Kind = "range"
	KindWildcard          Kind = "wildcard"
	KindRegexp            Kind = "regexp"
	KindQueryString       Kind = "query_string"
	KindSimpleQueryString Kind = "simple_query_string"
)

// kinds is the set of recognized top-level keys.
var kinds = map[string]Kind{
	string(KindMatch):             KindMatch,
	string(KindMatchPhrase):       KindMatchPhrase,
	string(KindMultiMatch):        KindMultiMatch,
	string(KindBool):              KindBool,
	string(KindTerm):              KindTerm,
	string(KindTerms):             KindTerms,
	string(KindRange):             KindRange,
	string(KindWildcard):          KindWildcard,
	string(KindRegexp):            KindRegexp,
	string(KindQueryString):       KindQueryString,
	string(KindSimpleQueryString): KindSimpleQueryString,
}

// Node is one clause of a parsed query.
type Node interface {
	Kind() Kind
}

// Operator combines the per-token predicates of a match clause.
type Operator string

const (
	OperatorOr  Operator = "or"
	OperatorAnd Operator = "and"
)

func parseOperator(v any) Operator {
	if s, ok := v.(string); ok && (s == "and" || s == "AND") {
		return OperatorAnd
	}
	return OperatorOr
}

// Match is tokenized containment over one field, or over every searchable
// field when Field is empty.
type Match struct {
	Field    string
	Query    string
	Operator Operator
	Boost    float64
}

// MatchPhrase is substring containment of the whole phrase.
type MatchPhrase struct {
	Field string
	Query string
	Boost float64
}

// FieldBoost is a multi_match target written as "field^weight".
type FieldBoost struct {
	Field string
	Boost float64
}

// MultiMatch replicates match semantics across Fields, or every searchable
// field when Fields is empty. Boosts only weight scoring.
type MultiMatch struct {
	Fields   []FieldBoost
	Query    string
	Operator Operator
	Boost    float64
}

// Term is exact equality.
type Term struct {
	Field string
	Value any
	Boost float64
}

// Terms is set membership.
type Terms struct {
	Field  string
	Values []any
	Boost  float64
}

// Bound is one side of a range, Op being gte, gt, lte or lt.
type Bound struct {
	Op    string
	Value any
}

// rangeOps lists the supported bounds in the order they are emitted.
var rangeOps = []struct {
	name string
	sql  string
}{
	{"gte", ">="},
	{"gt", ">"},
	{"lte", "<="},
	{"lt", "<"},
}

// Range is a conjunction of bound comparisons.
type Range struct {
	Field  string
	Bounds []Bound
	Boost  float64
}

// Wildcard matches Pattern where '*' is any run and '?' any one character.
type Wildcard struct {
	Field   string
	Pattern string
	Boost   float64
}

// Regexp passes Pattern to the backend's regular-expression operator.
type Regexp struct {
	Field   string
	Pattern string
	Boost   float64
}

// QueryString is the free-text grammar shared by query_string and
// simple_query_string.
type QueryString struct {
	Query        string
	DefaultField string
	Fields       []string
	Simple       bool
}

// Bool nests clauses. Should clauses form one OR group;
// MinimumShouldMatch is accepted and kept but never enforced.
type Bool struct {
	Must               []Node
	Should             []Node
	MustNot            []Node
	Filter             []Node
	MinimumShouldMatch any
	Boost              float64
}

func (*Match) Kind() Kind       { return KindMatch }
func (*MatchPhrase) Kind() Kind { return KindMatchPhrase }
func (*MultiMatch) Kind() Kind  { return KindMultiMatch }
func (*Term) Kind() Kind        { return KindTerm }
func (*Terms) Kind() Kind       { return KindTerms }
func (*Range) Kind() Kind       { return KindRange }
func (*Wildcard) Kind() Kind    { return KindWildcard }
func (*Regexp) Kind() Kind      { return KindRegexp }
func (*Bool) Kind() Kind        { return KindBool }

func (q *QueryString) Kind() Kind {
	if q.Simple {
		return KindSimpleQueryString
	}
	return KindQueryString
}
