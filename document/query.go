package document

import (
	"regexp"
	"strings"
)

// Op is a query comparison operator. The set mirrors what session tooling
// and the cloud API understand.
type Op string

const (
	// OpExactString matches a string field exactly.
	OpExactString Op = "exact_string"
	// OpNotExactString matches when the field is missing or differs.
	OpNotExactString Op = "not_exact_string"
	// OpContainsString matches a substring.
	OpContainsString Op = "contains_string"
	// OpExactNumber matches a numeric field exactly.
	OpExactNumber Op = "exact_number"
	// OpGreaterThan and friends compare numeric fields.
	OpGreaterThan   Op = "greaterthan"
	OpGreaterThanEq Op = "greaterthan_eq"
	OpLessThan      Op = "lessthan"
	OpLessThanEq    Op = "lessthan_eq"
	// OpRegexp matches a string field against a regular expression.
	OpRegexp Op = "regexp"
	// OpHasField matches when the field exists at all.
	OpHasField Op = "hasfield"
	// OpHasMember matches when an array field contains the value.
	OpHasMember Op = "hasmember"
	// OpIsA matches the document type, including subtypes.
	OpIsA Op = "isa"
	// OpDependsOn matches documents with a dependency edge to a document.
	OpDependsOn Op = "depends_on"
)

// Clause is one field comparison.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents. Clauses chained with Where are ANDed; Or starts a
// new alternative, so a query is an OR of AND-groups:
//
//	document.Where("element.name", document.OpExactString, "probe1").
//	        Where("epoch", document.OpExactString, "t0001").
//	        Or().
//	        IsA("stimulus")
//
// A query with no clauses matches every document.
type Query struct {
	groups [][]Clause
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{groups: make([][]Clause, 1)}
}

// Where starts a query with a first clause.
func Where(field string, op Op, value any) *Query {
	return NewQuery().Where(field, op, value)
}

// Where adds a clause to the current AND-group.
func (q *Query) Where(field string, op Op, value any) *Query {
	last := len(q.groups) - 1
	q.groups[last] = append(q.groups[last], Clause{Field: field, Op: op, Value: value})
	return q
}

// Or starts a new AND-group. Follow it with at least one Where.
func (q *Query) Or() *Query {
	q.groups = append(q.groups, nil)
	return q
}

// IsA adds a type clause to the current group.
func (q *Query) IsA(docType string) *Query {
	return q.Where("", OpIsA, docType)
}

// DependsOn adds a dependency clause to the current group. An empty name
// matches an edge under any name.
func (q *Query) DependsOn(name, documentID string) *Query {
	return q.Where("", OpDependsOn, Dependency{Name: name, DocumentID: documentID})
}

// Empty reports whether the query has no clauses.
func (q *Query) Empty() bool {
	if q == nil {
		return true
	}
	for _, g := range q.groups {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// Clauses returns every clause across all groups, for inspection.
func (q *Query) Clauses() []Clause {
	var all []Clause
	for _, g := range q.groups {
		all = append(all, g...)
	}
	return all
}

// Matches evaluates the query against a document in memory. The store uses
// this both as the fallback for operators SQLite cannot run and as the
// source of truth the SQL compilation must agree with.
func (q *Query) Matches(d *Document) bool {
	if q.Empty() {
		return true
	}
	for _, group := range q.groups {
		if len(group) == 0 {
			continue
		}
		matched := true
		for _, c := range group {
			if !c.matches(d) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (c Clause) matches(d *Document) bool {
	switch c.Op {
	case OpIsA:
		t, ok := c.Value.(string)
		return ok && d.IsA(t)
	case OpDependsOn:
		dep, ok := c.Value.(Dependency)
		if !ok {
			return false
		}
		for _, have := range d.DependsOn {
			if have.DocumentID == dep.DocumentID && (dep.Name == "" || have.Name == dep.Name) {
				return true
			}
		}
		return false
	}

	value, exists := fieldValue(d, c.Field)
	switch c.Op {
	case OpHasField:
		return exists
	case OpExactString:
		s, ok := asString(value)
		want, wantOk := asString(c.Value)
		return exists && ok && wantOk && s == want
	case OpNotExactString:
		s, ok := asString(value)
		want, wantOk := asString(c.Value)
		return !(exists && ok && wantOk && s == want)
	case OpContainsString:
		s, ok := asString(value)
		want, wantOk := asString(c.Value)
		return exists && ok && wantOk && strings.Contains(s, want)
	case OpRegexp:
		s, ok := asString(value)
		pattern, patOk := asString(c.Value)
		if !exists || !ok || !patOk {
			return false
		}
		re, err := regexp.Compile(pattern)
		return err == nil && re.MatchString(s)
	case OpExactNumber:
		n, ok := asNumber(value)
		want, wantOk := asNumber(c.Value)
		return exists && ok && wantOk && n == want
	case OpGreaterThan, OpGreaterThanEq, OpLessThan, OpLessThanEq:
		n, ok := asNumber(value)
		want, wantOk := asNumber(c.Value)
		if !exists || !ok || !wantOk {
			return false
		}
		switch c.Op {
		case OpGreaterThan:
			return n > want
		case OpGreaterThanEq:
			return n >= want
		case OpLessThan:
			return n < want
		default:
			return n <= want
		}
	case OpHasMember:
		if !exists {
			return false
		}
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if equalAny(item, c.Value) {
				return true
			}
		}
		return false
	}
	return false
}

// fieldValue resolves a dotted field path against a document. The shared
// columns resolve by name; everything else digs into Properties.
func fieldValue(d *Document, field string) (any, bool) {
	switch field {
	case "id":
		return d.ID, true
	case "session_id":
		return d.SessionID, true
	case "type":
		return d.Type, true
	case "schema_version":
		return d.SchemaVersion, true
	}
	return lookupPath(d.Properties, field)
}

// lookupPath walks nested maps by dotted path.
func lookupPath(props map[string]any, path string) (any, bool) {
	if props == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = props
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func equalAny(a, b any) bool {
	if as, ok := asString(a); ok {
		bs, ok := asString(b)
		return ok && as == bs
	}
	if an, ok := asNumber(a); ok {
		bn, ok := asNumber(b)
		return ok && an == bn
	}
	return false
}
