// Package transform compiles declarative transform steps into SQL statements
// for the embedded analytical engine.
//
// Compilation is pure and total: every recognized operator maps to a single
// deterministic SQL shape, and unrecognized operators compile to an identity
// selection instead of erroring. That keeps old engines forward-compatible
// with pipelines authored against newer operator sets.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loomworks/loom/pkg/domain"
)

// Recognized operator names.
const (
	OpRenameColumn     = "rename_column"
	OpCastType         = "cast_type"
	OpTrimWhitespace   = "trim_whitespace"
	OpFilterRows       = "filter_rows"
	OpDropNulls        = "drop_nulls"
	OpDeduplicateRows  = "deduplicate_rows"
	OpReplaceText      = "replace_text"
	OpRegexReplace     = "regex_replace"
	OpAddDerivedColumn = "add_derived_column"
	OpSplitColumn      = "split_column"
	OpMergeColumns     = "merge_columns"
	OpSQLTransform     = "sql_transform"
	OpAggregate        = "aggregate"
)

// InputPlaceholder is substituted with the source relation name inside
// sql_transform statements.
const InputPlaceholder = "{{input}}"

// Compile converts one transform step into a SQL statement reading from
// sourceView. The statement is deterministic for a given step, so a chain of
// steps always compiles to the same view stack.
func Compile(step domain.TransformStep, sourceView string) string {
	params := step.Params

	switch step.Operator {
	case OpRenameColumn:
		// RENAME, not REPLACE: a REPLACE target must already exist in the
		// source relation, so it cannot introduce the new column name.
		from := stringParam(params, "from_name")
		to := stringParam(params, "to_name")
		return fmt.Sprintf(`SELECT * RENAME (%s AS %s) FROM %s`, quoteIdent(from), quoteIdent(to), sourceView)

	case OpCastType:
		col := stringParam(params, "column")
		target := stringParam(params, "target_type")
		return fmt.Sprintf(`SELECT * REPLACE (CAST(%s AS %s) AS %s) FROM %s`, quoteIdent(col), target, quoteIdent(col), sourceView)

	case OpTrimWhitespace:
		// The engine trims on read; identity select keeps the operator
		// observable in logs without changing data.
		return identity(sourceView)

	case OpFilterRows:
		expr := stringParam(params, "expression")
		if expr == "" {
			return identity(sourceView)
		}
		return fmt.Sprintf(`SELECT * FROM %s WHERE %s`, sourceView, expr)

	case OpDropNulls:
		cols := stringSliceParam(params, "columns")
		if len(cols) == 0 {
			return identity(sourceView)
		}
		conds := make([]string, len(cols))
		for i, c := range cols {
			conds[i] = quoteIdent(c) + " IS NOT NULL"
		}
		return fmt.Sprintf(`SELECT * FROM %s WHERE %s`, sourceView, strings.Join(conds, " AND "))

	case OpDeduplicateRows:
		cols := stringSliceParam(params, "columns")
		if len(cols) == 0 {
			return fmt.Sprintf(`SELECT DISTINCT * FROM %s`, sourceView)
		}
		// No window ORDER BY: numbering follows scan order, so which row
		// survives among duplicates is not guaranteed stable.
		return fmt.Sprintf(
			`SELECT * EXCLUDE (_rn) FROM (SELECT *, ROW_NUMBER() OVER (PARTITION BY %s) AS _rn FROM %s) WHERE _rn = 1`,
			quoteIdentList(cols), sourceView)

	case OpReplaceText:
		col := stringParam(params, "column")
		find := stringParam(params, "find")
		replace := stringParam(params, "replace")
		return fmt.Sprintf(`SELECT * REPLACE (REPLACE(%s, %s, %s) AS %s) FROM %s`,
			quoteIdent(col), quoteString(find), quoteString(replace), quoteIdent(col), sourceView)

	case OpRegexReplace:
		col := stringParam(params, "column")
		pattern := stringParam(params, "pattern")
		replacement := stringParam(params, "replacement")
		return fmt.Sprintf(`SELECT * REPLACE (regexp_replace(%s, %s, %s, 'g') AS %s) FROM %s`,
			quoteIdent(col), quoteString(pattern), quoteString(replacement), quoteIdent(col), sourceView)

	case OpAddDerivedColumn:
		name := stringParam(params, "name")
		expr := stringParam(params, "expression")
		return fmt.Sprintf(`SELECT *, (%s) AS %s FROM %s`, expr, quoteIdent(name), sourceView)

	case OpSplitColumn:
		col := stringParam(params, "column")
		delim := stringParam(params, "delimiter")
		names := stringSliceParam(params, "new_names")
		if len(names) == 0 {
			names = []string{col + "_1", col + "_2"}
		}
		parts := make([]string, len(names))
		for i, name := range names {
			// string_split positions are 1-indexed.
			parts[i] = fmt.Sprintf(`string_split(%s, %s)[%d] AS %s`, quoteIdent(col), quoteString(delim), i+1, quoteIdent(name))
		}
		return fmt.Sprintf(`SELECT *, %s FROM %s`, strings.Join(parts, ", "), sourceView)

	case OpMergeColumns:
		cols := stringSliceParam(params, "columns")
		if len(cols) == 0 {
			return identity(sourceView)
		}
		sep := " "
		if v, ok := params["separator"].(string); ok {
			sep = v
		}
		name := stringParam(params, "new_name")
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprintf(`COALESCE(CAST(%s AS VARCHAR), '')`, quoteIdent(c))
		}
		joiner := " || "
		if sep != "" {
			joiner = fmt.Sprintf(" || %s || ", quoteString(sep))
		}
		return fmt.Sprintf(`SELECT *, (%s) AS %s FROM %s`, strings.Join(parts, joiner), quoteIdent(name), sourceView)

	case OpSQLTransform:
		raw := stringParam(params, "sql")
		if strings.TrimSpace(raw) == "" {
			return identity(sourceView)
		}
		return strings.ReplaceAll(raw, InputPlaceholder, sourceView)

	case OpAggregate:
		groupBy := stringSliceParam(params, "group_by")
		aggs := stringMapParam(params, "aggregations")
		if len(aggs) == 0 {
			return identity(sourceView)
		}
		// Map iteration order is random; sort for a stable statement.
		aggCols := make([]string, 0, len(aggs))
		for col := range aggs {
			aggCols = append(aggCols, col)
		}
		sort.Strings(aggCols)
		parts := make([]string, len(aggCols))
		for i, col := range aggCols {
			fn := aggs[col]
			parts[i] = fmt.Sprintf(`%s(%s) AS %s`, fn, quoteIdent(col), quoteIdent(col+"_"+fn))
		}
		if len(groupBy) == 0 {
			return fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(parts, ", "), sourceView)
		}
		gb := quoteIdentList(groupBy)
		return fmt.Sprintf(`SELECT %s, %s FROM %s GROUP BY %s`, gb, strings.Join(parts, ", "), sourceView, gb)

	default:
		// Forward compatibility: unknown operators select through unchanged.
		return identity(sourceView)
	}
}

// ViewName returns the canonical relation name for step index i in a chain.
// The chain starts from "_input"; step 0 materializes as "_step_0" and so on.
func ViewName(i int) string {
	return fmt.Sprintf("_step_%d", i)
}

// InputView is the relation name the first step of every chain reads from.
const InputView = "_input"

// CompileChain compiles a full step list into (viewName, statement) pairs in
// execution order, starting from InputView. Only the final view is ever
// materialized by the query layer.
func CompileChain(steps []domain.TransformStep) []CompiledStep {
	out := make([]CompiledStep, len(steps))
	current := InputView
	for i, step := range steps {
		name := ViewName(i)
		out[i] = CompiledStep{
			View:     name,
			SQL:      Compile(step, current),
			Operator: step.Operator,
		}
		current = name
	}
	return out
}

// CompiledStep is one link in a compiled view chain.
type CompiledStep struct {
	View     string
	SQL      string
	Operator string
}

// FinalView returns the relation name holding the chain's result: the last
// step's view, or InputView for an empty chain.
func FinalView(steps []domain.TransformStep) string {
	if len(steps) == 0 {
		return InputView
	}
	return ViewName(len(steps) - 1)
}

func identity(sourceView string) string {
	return "SELECT * FROM " + sourceView
}
