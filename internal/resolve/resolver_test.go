package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

func group(name string, children ...*models.LayerNode) *models.LayerNode {
	return &models.LayerNode{
		ID:       "id-" + name,
		Name:     name,
		Visible:  true,
		Opacity:  1,
		Children: children,
	}
}

func leaf(name string) *models.LayerNode {
	return group(name)
}

func TestResolve_TreeUnavailable(t *testing.T) {
	res := Resolve("Symbols", nil)
	assert.Equal(t, models.ResolveDataLocked, res.Status)
	assert.Nil(t, res.Matched)
}

func TestResolve_NoName(t *testing.T) {
	tree := group("root", leaf("Symbols"))

	tests := []struct {
		name      string
		requested string
	}{
		{"empty", ""},
		{"whitespace_only", "   "},
		{"markers_only", "!!!"},
		{"markers_and_whitespace", " !! "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.requested, tree)
			assert.Equal(t, models.ResolveNoName, res.Status)
		})
	}
}

func TestResolve_ExactMatchBeatsCaseInsensitive(t *testing.T) {
	// The case-insensitive candidate comes first in traversal order; the
	// exact-case match deeper in the tree must still win.
	tree := group("root",
		group("Symbols", leaf("a")),
		group("nested",
			group("SYMBOLS", leaf("b")),
		),
	)

	res := Resolve("SYMBOLS", tree)
	require.NotNil(t, res.Matched)
	assert.Equal(t, models.ResolveResolved, res.Status)
	assert.Equal(t, "SYMBOLS", res.Matched.Name)
}

func TestResolve_CaseInsensitiveFallback(t *testing.T) {
	tree := group("root", group("Symbols", leaf("a")))

	res := Resolve("symbols", tree)
	require.NotNil(t, res.Matched)
	assert.Equal(t, models.ResolveCaseMismatch, res.Status)
	assert.Equal(t, "Symbols", res.Matched.Name)
	assert.Contains(t, res.Message, "case mismatch")
}

func TestResolve_PrefixStripping(t *testing.T) {
	tree := group("root", group("SYMBOLS", leaf("a")))

	res := Resolve("!!SYMBOLS", tree)
	require.NotNil(t, res.Matched)
	assert.Equal(t, models.ResolveResolved, res.Status)
	assert.Equal(t, "SYMBOLS", res.Matched.Name)
}

func TestResolve_DeeplyNestedMatch(t *testing.T) {
	inner := group("Badges", leaf("star"))
	tree := group("root",
		group("page",
			group("section",
				group("column", inner),
			),
		),
	)

	res := Resolve("Badges", tree)
	require.NotNil(t, res.Matched)
	assert.Equal(t, models.ResolveResolved, res.Status)
	assert.Equal(t, inner, res.Matched)
}

func TestResolve_EmptyGroup(t *testing.T) {
	tree := group("root", leaf("Symbols"))

	t.Run("exact_tier", func(t *testing.T) {
		res := Resolve("Symbols", tree)
		assert.Equal(t, models.ResolveEmptyGroup, res.Status)
		require.NotNil(t, res.Matched)
		assert.Equal(t, "Symbols", res.Matched.Name)
	})

	t.Run("insensitive_tier", func(t *testing.T) {
		res := Resolve("symbols", tree)
		assert.Equal(t, models.ResolveEmptyGroup, res.Status)
		require.NotNil(t, res.Matched)
	})
}

func TestResolve_MissingGroup(t *testing.T) {
	tree := group("root", group("Symbols", leaf("a")))

	res := Resolve("Icons", tree)
	assert.Equal(t, models.ResolveMissingDesignGroup, res.Status)
	assert.Nil(t, res.Matched)
	assert.Contains(t, res.Message, "Icons")
}

func TestResolve_FirstMatchWinsInPreOrder(t *testing.T) {
	first := group("Dup", leaf("a"))
	second := group("Dup", leaf("b"), leaf("c"))
	tree := group("root", first, second)

	res := Resolve("Dup", tree)
	require.NotNil(t, res.Matched)
	assert.Equal(t, first, res.Matched)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Symbols", CleanName("  !!Symbols  "))
	assert.Equal(t, "Symbols", CleanName("Symbols"))
	assert.Equal(t, "", CleanName(" ! "))
}
