package document

import (
	"strings"
)

// sqlBuilder accumulates SQL fragments and parameters while compiling a
// query clause.
type sqlBuilder struct {
	parts []string
	args  []any
}

func (sb *sqlBuilder) add(fragment string, args ...any) {
	sb.parts = append(sb.parts, fragment)
	sb.args = append(sb.args, args...)
}

func (sb *sqlBuilder) joined(sep string) string {
	return strings.Join(sb.parts, sep)
}

// compileQuery translates a query into a SQL WHERE fragment over the
// documents table. The second return is the bound arguments. ok is false
// when any clause needs Go-side evaluation (regexp, odd value types); the
// caller then falls back to Query.Matches.
func compileQuery(q *Query) (where string, args []any, ok bool) {
	var groups sqlBuilder
	for _, group := range q.groups {
		if len(group) == 0 {
			continue
		}
		var clauses sqlBuilder
		for _, c := range group {
			fragment, clauseArgs, ok := clauseSQL(c)
			if !ok {
				return "", nil, false
			}
			clauses.add(fragment, clauseArgs...)
		}
		groups.add("("+clauses.joined(" AND ")+")", clauses.args...)
	}
	if len(groups.parts) == 0 {
		return "", nil, false
	}
	return "(" + groups.joined(" OR ") + ")", groups.args, true
}

// coreColumns maps query fields stored as real columns rather than JSON
// properties.
var coreColumns = map[string]string{
	"id":             "id",
	"session_id":     "session_id",
	"type":           "type",
	"schema_version": "schema_version",
}

// clauseSQL emits the SQL for one clause. The json_type guards keep SQLite's
// cross-type comparison semantics in line with Matches: a numeric property
// never satisfies a string operator and vice versa.
func clauseSQL(c Clause) (string, []any, bool) {
	column, isCore := coreColumns[c.Field]
	path := jsonPath(c.Field)

	switch c.Op {
	case OpExactString:
		v, ok := asString(c.Value)
		if !ok {
			return "", nil, false
		}
		if isCore {
			return column + " = ?", []any{v}, true
		}
		return "(json_type(properties, ?) = 'text' AND json_extract(properties, ?) = ?)",
			[]any{path, path, v}, true

	case OpNotExactString:
		v, ok := asString(c.Value)
		if !ok {
			return "", nil, false
		}
		if isCore {
			return column + " != ?", []any{v}, true
		}
		return "(json_type(properties, ?) IS NOT 'text' OR json_extract(properties, ?) != ?)",
			[]any{path, path, v}, true

	case OpContainsString:
		v, ok := asString(c.Value)
		if !ok {
			return "", nil, false
		}
		pattern := "%" + escapeLikePattern(v) + "%"
		if isCore {
			return column + ` LIKE ? ESCAPE '\'`, []any{pattern}, true
		}
		return `(json_type(properties, ?) = 'text' AND json_extract(properties, ?) LIKE ? ESCAPE '\')`,
			[]any{path, path, pattern}, true

	case OpExactNumber, OpGreaterThan, OpGreaterThanEq, OpLessThan, OpLessThanEq:
		return numberClauseSQL(c, column, isCore, path)

	case OpRegexp:
		// SQLite has no regexp function loaded; evaluated in Go.
		return "", nil, false

	case OpHasField:
		if isCore {
			return "1 = 1", nil, true
		}
		return "json_type(properties, ?) IS NOT NULL", []any{path}, true

	case OpHasMember:
		if isCore {
			return "", nil, false
		}
		// Booleans bind as 0/1 and would falsely match JSON true/false, so
		// only string and numeric members compile.
		if _, isStr := asString(c.Value); !isStr {
			if _, isNum := asNumber(c.Value); !isNum {
				return "", nil, false
			}
		}
		return `(json_type(properties, ?) = 'array' AND EXISTS (
			SELECT 1 FROM json_each(documents.properties, ?) WHERE json_each.value = ?))`,
			[]any{path, path, c.Value}, true

	case OpIsA:
		v, ok := asString(c.Value)
		if !ok {
			return "", nil, false
		}
		return `(type = ? OR type LIKE ? ESCAPE '\')`,
			[]any{v, escapeLikePattern(v) + "/%"}, true

	case OpDependsOn:
		dep, ok := c.Value.(Dependency)
		if !ok {
			return "", nil, false
		}
		if dep.Name == "" {
			return `EXISTS (SELECT 1 FROM document_depends
				WHERE document_id = documents.id AND depends_on = ?)`,
				[]any{dep.DocumentID}, true
		}
		return `EXISTS (SELECT 1 FROM document_depends
			WHERE document_id = documents.id AND depends_on = ? AND name = ?)`,
			[]any{dep.DocumentID, dep.Name}, true

	default:
		return "", nil, false
	}
}

func numberClauseSQL(c Clause, column string, isCore bool, path string) (string, []any, bool) {
	v, ok := asNumber(c.Value)
	if !ok {
		return "", nil, false
	}
	if isCore {
		// Core columns are text; numeric operators never match them, same
		// as the Go path.
		return "1 = 0", nil, true
	}

	var op string
	switch c.Op {
	case OpExactNumber:
		op = "="
	case OpGreaterThan:
		op = ">"
	case OpGreaterThanEq:
		op = ">="
	case OpLessThan:
		op = "<"
	case OpLessThanEq:
		op = "<="
	default:
		return "", nil, false
	}
	return "(json_type(properties, ?) IN ('integer', 'real') AND json_extract(properties, ?) " + op + " ?)",
		[]any{path, path, v}, true
}

// jsonPath quotes each dotted segment so property names survive as literal
// keys in SQLite's JSON path syntax.
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(part)
		b.WriteString(`"`)
	}
	return b.String()
}

// escapeLikePattern escapes special characters in LIKE patterns for the SQL
// ESCAPE clause.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
