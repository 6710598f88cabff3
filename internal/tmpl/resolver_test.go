package tmpl

import (
	"testing"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_SimpleTemplatePreservesType(t *testing.T) {
	ctx := NewContext(nil, map[string]any{
		"read": map[string]any{"content": "hi"},
	}, nil)

	result, degraded, err := Resolve("${read.content}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "hi", result)
}

func TestResolve_SimpleTemplateNumberRoundTrips(t *testing.T) {
	ctx := NewContext(nil, map[string]any{"count": 42}, nil)

	result, _, err := Resolve("${count}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestResolve_SimpleTemplateSequenceAndMapPreserveType(t *testing.T) {
	ctx := NewContext(nil, map[string]any{
		"items": []any{1, 2, 3},
		"obj":   map[string]any{"a": 1},
	}, nil)

	items, _, err := Resolve("${items}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, items)

	obj, _, err := Resolve("${obj}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, obj)
}

func TestResolve_ComplexTemplateStringifiesEmbeddedValues(t *testing.T) {
	ctx := NewContext(nil, map[string]any{
		"upper": map[string]any{"text": "HI"},
		"count": 3,
	}, nil)

	result, _, err := Resolve("Result: ${upper.text} (${count} items)", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, "Result: HI (3 items)", result)
}

func TestResolve_ComplexTemplateJSONStringifiesNonStrings(t *testing.T) {
	ctx := NewContext(nil, map[string]any{
		"obj": map[string]any{"a": 1},
	}, nil)

	result, _, err := Resolve("Data: ${obj}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, `Data: {"a":1}`, result)
}

func TestResolve_DoubleDollarIsLiteralDollar(t *testing.T) {
	ctx := NewContext(nil, nil, nil)

	result, degraded, err := Resolve("price: $$5", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "price: $5", result)
}

func TestResolve_StrictModeRaisesOnUnresolved(t *testing.T) {
	ctx := NewContext(nil, nil, nil)

	_, _, err := Resolve("${missing}", ctx, ir.ModeStrict)
	require.Error(t, err)
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Path)
}

func TestResolve_PermissiveModeSentinels(t *testing.T) {
	ctx := NewContext(nil, nil, nil)

	simple, degraded, err := Resolve("${missing}", ctx, ir.ModePermissive)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Nil(t, simple)

	complex, degraded, err := Resolve("value: ${missing}", ctx, ir.ModePermissive)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, "value: [unresolved:${missing}]", complex)
}

func TestResolve_Precedence(t *testing.T) {
	ctx := NewContext(
		map[string]any{"name": "from-params"},
		map[string]any{"name": "from-shared"},
		map[string]any{"name": "from-inputs"},
	)

	result, _, err := Resolve("${name}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, "from-params", result)

	ctx2 := NewContext(nil, map[string]any{"name": "from-shared"}, map[string]any{"name": "from-inputs"})
	result2, _, err := Resolve("${name}", ctx2, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, "from-shared", result2)
}

func TestResolve_IndexedAndNestedPath(t *testing.T) {
	ctx := NewContext(nil, map[string]any{
		"list": map[string]any{
			"items": []any{
				map[string]any{"id": "a"},
				map[string]any{"id": "b"},
			},
		},
	}, nil)

	result, _, err := Resolve("${list.items[1].id}", ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, "b", result)
}

func TestResolve_RecursesThroughMapsAndSlices(t *testing.T) {
	ctx := NewContext(nil, map[string]any{"x": "resolved"}, nil)

	input := map[string]any{
		"a": "${x}",
		"b": []any{"${x}", "literal"},
	}
	result, _, err := Resolve(input, ctx, ir.ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": "resolved",
		"b": []any{"resolved", "literal"},
	}, result)
}

func TestReferences_CollectsAllPaths(t *testing.T) {
	input := map[string]any{
		"a": "${x.y}",
		"b": []any{"${z}", "plain text ${w}"},
	}
	refs := References(input)
	assert.ElementsMatch(t, []string{"x.y", "z", "w"}, refs)
}
