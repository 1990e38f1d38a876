package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/loomworks/loom/pkg/domain"
)

func step(op string, params map[string]any) domain.TransformStep {
	return domain.TransformStep{Operator: op, Params: params}
}

func TestCompileOperators(t *testing.T) {
	tests := []struct {
		name string
		step domain.TransformStep
		want string
	}{
		{
			name: "rename column",
			step: step(OpRenameColumn, map[string]any{"from_name": "A", "to_name": "B"}),
			want: `SELECT * RENAME ("A" AS "B") FROM _input`,
		},
		{
			name: "cast type",
			step: step(OpCastType, map[string]any{"column": "B", "target_type": "INTEGER"}),
			want: `SELECT * REPLACE (CAST("B" AS INTEGER) AS "B") FROM _input`,
		},
		{
			name: "trim whitespace is identity",
			step: step(OpTrimWhitespace, map[string]any{"columns": []any{"a", "b"}}),
			want: `SELECT * FROM _input`,
		},
		{
			name: "filter rows",
			step: step(OpFilterRows, map[string]any{"expression": "price > 10"}),
			want: `SELECT * FROM _input WHERE price > 10`,
		},
		{
			name: "drop nulls",
			step: step(OpDropNulls, map[string]any{"columns": []any{"sku", "name"}}),
			want: `SELECT * FROM _input WHERE "sku" IS NOT NULL AND "name" IS NOT NULL`,
		},
		{
			name: "drop nulls without columns is identity",
			step: step(OpDropNulls, map[string]any{}),
			want: `SELECT * FROM _input`,
		},
		{
			name: "deduplicate by columns",
			step: step(OpDeduplicateRows, map[string]any{"columns": []any{"sku"}}),
			want: `SELECT * EXCLUDE (_rn) FROM (SELECT *, ROW_NUMBER() OVER (PARTITION BY "sku") AS _rn FROM _input) WHERE _rn = 1`,
		},
		{
			name: "deduplicate without columns",
			step: step(OpDeduplicateRows, map[string]any{}),
			want: `SELECT DISTINCT * FROM _input`,
		},
		{
			name: "replace text",
			step: step(OpReplaceText, map[string]any{"column": "name", "find": "Mr.", "replace": ""}),
			want: `SELECT * REPLACE (REPLACE("name", 'Mr.', '') AS "name") FROM _input`,
		},
		{
			name: "regex replace is global",
			step: step(OpRegexReplace, map[string]any{"column": "phone", "pattern": `\D`, "replacement": ""}),
			want: `SELECT * REPLACE (regexp_replace("phone", '\D', '', 'g') AS "phone") FROM _input`,
		},
		{
			name: "add derived column",
			step: step(OpAddDerivedColumn, map[string]any{"name": "total", "expression": "price * qty"}),
			want: `SELECT *, (price * qty) AS "total" FROM _input`,
		},
		{
			name: "split column is one-indexed",
			step: step(OpSplitColumn, map[string]any{"column": "full_name", "delimiter": " ", "new_names": []any{"first", "last"}}),
			want: `SELECT *, string_split("full_name", ' ')[1] AS "first", string_split("full_name", ' ')[2] AS "last" FROM _input`,
		},
		{
			name: "split column default names",
			step: step(OpSplitColumn, map[string]any{"column": "v", "delimiter": ","}),
			want: `SELECT *, string_split("v", ',')[1] AS "v_1", string_split("v", ',')[2] AS "v_2" FROM _input`,
		},
		{
			name: "merge columns with separator",
			step: step(OpMergeColumns, map[string]any{"columns": []any{"first", "last"}, "separator": " ", "new_name": "full"}),
			want: `SELECT *, (COALESCE(CAST("first" AS VARCHAR), '') || ' ' || COALESCE(CAST("last" AS VARCHAR), '')) AS "full" FROM _input`,
		},
		{
			name: "merge columns empty separator concatenates directly",
			step: step(OpMergeColumns, map[string]any{"columns": []any{"a", "b"}, "separator": "", "new_name": "ab"}),
			want: `SELECT *, (COALESCE(CAST("a" AS VARCHAR), '') || COALESCE(CAST("b" AS VARCHAR), '')) AS "ab" FROM _input`,
		},
		{
			name: "sql transform substitutes placeholder",
			step: step(OpSQLTransform, map[string]any{"sql": "SELECT sku, SUM(qty) AS qty FROM {{input}} GROUP BY sku"}),
			want: `SELECT sku, SUM(qty) AS qty FROM _input GROUP BY sku`,
		},
		{
			name: "aggregate with group by",
			step: step(OpAggregate, map[string]any{
				"group_by":     []any{"region"},
				"aggregations": map[string]any{"price": "avg", "qty": "sum"},
			}),
			want: `SELECT "region", avg("price") AS "price_avg", sum("qty") AS "qty_sum" FROM _input GROUP BY "region"`,
		},
		{
			name: "aggregate without group by",
			step: step(OpAggregate, map[string]any{"aggregations": map[string]any{"qty": "sum"}}),
			want: `SELECT sum("qty") AS "qty_sum" FROM _input`,
		},
		{
			name: "unknown operator is identity",
			step: step("pivot_wider", map[string]any{"anything": true}),
			want: `SELECT * FROM _input`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compile(tt.step, InputView))
		})
	}
}

func TestCompileQuotesHostileNames(t *testing.T) {
	got := Compile(step(OpRenameColumn, map[string]any{"from_name": `we"ird`, "to_name": "ok"}), "_input")
	assert.Equal(t, `SELECT * RENAME ("we""ird" AS "ok") FROM _input`, got)

	got = Compile(step(OpReplaceText, map[string]any{"column": "c", "find": "it's", "replace": "its"}), "_input")
	assert.Equal(t, `SELECT * REPLACE (REPLACE("c", 'it''s', 'its') AS "c") FROM _input`, got)
}

func TestCompileChain(t *testing.T) {
	steps := []domain.TransformStep{
		step(OpRenameColumn, map[string]any{"from_name": "A", "to_name": "B"}),
		step(OpCastType, map[string]any{"column": "B", "target_type": "INTEGER"}),
	}

	chain := CompileChain(steps)
	require.Len(t, chain, 2)

	assert.Equal(t, "_step_0", chain[0].View)
	assert.Equal(t, `SELECT * RENAME ("A" AS "B") FROM _input`, chain[0].SQL)

	assert.Equal(t, "_step_1", chain[1].View)
	assert.Equal(t, `SELECT * REPLACE (CAST("B" AS INTEGER) AS "B") FROM _step_0`, chain[1].SQL,
		"each step reads from the previous step's view")

	assert.Equal(t, "_step_1", FinalView(steps))
	assert.Equal(t, InputView, FinalView(nil))
}

func TestCompileIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		op := rapid.SampledFrom([]string{
			OpRenameColumn, OpCastType, OpFilterRows, OpDropNulls,
			OpDeduplicateRows, OpMergeColumns, OpAggregate, "made_up_op",
		}).Draw(t, "op")

		cols := rapid.SliceOfN(rapid.StringMatching(`[a-z_]{1,12}`), 0, 4).Draw(t, "cols")
		anyCols := make([]any, len(cols))
		for i, c := range cols {
			anyCols[i] = c
		}

		aggs := map[string]any{}
		for _, c := range cols {
			aggs[c] = rapid.SampledFrom([]string{"sum", "avg", "min", "max", "count"}).Draw(t, "fn_"+c)
		}

		s := step(op, map[string]any{
			"from_name":    rapid.StringMatching(`[a-z_]{1,12}`).Draw(t, "from"),
			"to_name":      rapid.StringMatching(`[a-z_]{1,12}`).Draw(t, "to"),
			"column":       rapid.StringMatching(`[a-z_]{1,12}`).Draw(t, "col"),
			"target_type":  "VARCHAR",
			"expression":   "x > 1",
			"columns":      anyCols,
			"group_by":     anyCols,
			"aggregations": aggs,
			"new_name":     "merged",
			"separator":    "-",
		})

		first := Compile(s, InputView)
		for i := 0; i < 3; i++ {
			if again := Compile(s, InputView); again != first {
				t.Fatalf("compile not deterministic for %s:\n%s\n%s", op, first, again)
			}
		}
	})
}
