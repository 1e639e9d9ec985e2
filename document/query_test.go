package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryDoc() *Document {
	doc := New("sess1", TypeEpoch)
	doc.Properties = map[string]any{
		"name":     "t0001",
		"duration": 42.5,
		"count":    3.0,
		"tags":     []any{"raw", "sorted", 7.0},
		"epoch": map[string]any{
			"device_id": "intan",
		},
	}
	doc.AddDependency("session_id", "abc_123")
	return doc
}

func TestClause_Matches(t *testing.T) {
	doc := queryDoc()

	tests := []struct {
		name   string
		clause Clause
		want   bool
	}{
		{"exact string hit", Clause{"name", OpExactString, "t0001"}, true},
		{"exact string miss", Clause{"name", OpExactString, "t0002"}, false},
		{"exact string on number field", Clause{"duration", OpExactString, "42.5"}, false},
		{"exact string on missing field", Clause{"ghost", OpExactString, "x"}, false},

		{"not exact hit", Clause{"name", OpNotExactString, "t0002"}, true},
		{"not exact miss", Clause{"name", OpNotExactString, "t0001"}, false},
		{"not exact on missing field", Clause{"ghost", OpNotExactString, "x"}, true},
		{"not exact on number field", Clause{"duration", OpNotExactString, "x"}, true},

		{"contains hit", Clause{"name", OpContainsString, "000"}, true},
		{"contains miss", Clause{"name", OpContainsString, "xyz"}, false},
		{"contains on missing field", Clause{"ghost", OpContainsString, "t"}, false},

		{"regexp hit", Clause{"name", OpRegexp, `^t\d{4}$`}, true},
		{"regexp miss", Clause{"name", OpRegexp, `^u\d+$`}, false},
		{"regexp invalid pattern", Clause{"name", OpRegexp, `[`}, false},

		{"exact number hit", Clause{"duration", OpExactNumber, 42.5}, true},
		{"exact number int value", Clause{"count", OpExactNumber, 3}, true},
		{"exact number miss", Clause{"duration", OpExactNumber, 42.0}, false},
		{"exact number on string field", Clause{"name", OpExactNumber, 1.0}, false},

		{"greaterthan hit", Clause{"duration", OpGreaterThan, 42.0}, true},
		{"greaterthan miss on equal", Clause{"duration", OpGreaterThan, 42.5}, false},
		{"greaterthan_eq on equal", Clause{"duration", OpGreaterThanEq, 42.5}, true},
		{"lessthan hit", Clause{"duration", OpLessThan, 50.0}, true},
		{"lessthan_eq on equal", Clause{"duration", OpLessThanEq, 42.5}, true},
		{"lessthan miss", Clause{"duration", OpLessThan, 42.5}, false},

		{"hasfield hit", Clause{"duration", OpHasField, nil}, true},
		{"hasfield nested hit", Clause{"epoch.device_id", OpHasField, nil}, true},
		{"hasfield miss", Clause{"ghost", OpHasField, nil}, false},

		{"hasmember string hit", Clause{"tags", OpHasMember, "sorted"}, true},
		{"hasmember number hit", Clause{"tags", OpHasMember, 7.0}, true},
		{"hasmember miss", Clause{"tags", OpHasMember, "unsorted"}, false},
		{"hasmember on non-array", Clause{"name", OpHasMember, "t0001"}, false},

		{"isa exact", Clause{"", OpIsA, "daq/epoch"}, true},
		{"isa parent", Clause{"", OpIsA, "daq"}, true},
		{"isa miss", Clause{"", OpIsA, "stimulus"}, false},

		{"depends_on named hit", Clause{"", OpDependsOn, Dependency{Name: "session_id", DocumentID: "abc_123"}}, true},
		{"depends_on any-name hit", Clause{"", OpDependsOn, Dependency{DocumentID: "abc_123"}}, true},
		{"depends_on wrong name", Clause{"", OpDependsOn, Dependency{Name: "probe", DocumentID: "abc_123"}}, false},
		{"depends_on miss", Clause{"", OpDependsOn, Dependency{DocumentID: "zzz_999"}}, false},

		{"core column id", Clause{"id", OpExactString, doc.ID}, true},
		{"core column type contains", Clause{"type", OpContainsString, "epoch"}, true},
		{"nested property", Clause{"epoch.device_id", OpExactString, "intan"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.clause.matches(doc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	doc := queryDoc()

	t.Run("empty query matches everything", func(t *testing.T) {
		assert.True(t, NewQuery().Matches(doc))
	})

	t.Run("clauses in a group AND together", func(t *testing.T) {
		q := Where("name", OpExactString, "t0001").
			Where("duration", OpGreaterThan, 40.0)
		assert.True(t, q.Matches(doc))

		q = Where("name", OpExactString, "t0001").
			Where("duration", OpGreaterThan, 50.0)
		assert.False(t, q.Matches(doc))
	})

	t.Run("groups OR together", func(t *testing.T) {
		q := Where("name", OpExactString, "nope").
			Or().
			IsA("daq")
		assert.True(t, q.Matches(doc))

		q = Where("name", OpExactString, "nope").
			Or().
			IsA("stimulus")
		assert.False(t, q.Matches(doc))
	})

	t.Run("trailing empty group is ignored", func(t *testing.T) {
		q := Where("name", OpExactString, "t0001").Or()
		assert.True(t, q.Matches(doc))

		q = Where("name", OpExactString, "nope").Or()
		assert.False(t, q.Matches(doc))
	})
}

func TestCompileQuery(t *testing.T) {
	t.Run("plain clauses compile", func(t *testing.T) {
		q := Where("name", OpExactString, "t0001").
			Where("duration", OpGreaterThan, 40.0).
			Or().
			IsA("daq").
			DependsOn("", "abc_123")

		where, args, ok := compileQuery(q)
		require.True(t, ok)
		assert.NotEmpty(t, where)
		assert.NotEmpty(t, args)
	})

	t.Run("regexp forces the in-memory path", func(t *testing.T) {
		q := Where("name", OpRegexp, `^t\d+$`)
		_, _, ok := compileQuery(q)
		assert.False(t, ok)
	})

	t.Run("one uncompilable clause disables the whole query", func(t *testing.T) {
		q := Where("name", OpExactString, "t0001").
			Where("name", OpRegexp, `^t`)
		_, _, ok := compileQuery(q)
		assert.False(t, ok)
	})

	t.Run("boolean hasmember stays in memory", func(t *testing.T) {
		q := Where("tags", OpHasMember, true)
		_, _, ok := compileQuery(q)
		assert.False(t, ok)
	})

	t.Run("empty query does not compile", func(t *testing.T) {
		_, _, ok := compileQuery(NewQuery())
		assert.False(t, ok)
	})
}

func TestJSONPath(t *testing.T) {
	assert.Equal(t, `$."name"`, jsonPath("name"))
	assert.Equal(t, `$."epoch"."device_id"`, jsonPath("epoch.device_id"))
}
