package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMatchRoute tests keyword routing with underscores and case folding
func TestMatchRoute(t *testing.T) {
	routes := []route[string]{
		{"search_knowledge", "search"},
		{"collect_feedback", "collect"},
	}

	h, ok := matchRoute("Search knowledge for business meeting", routes)
	assert.True(t, ok)
	assert.Equal(t, "search", h)

	h, ok = matchRoute("collect_feedback", routes)
	assert.True(t, ok)
	assert.Equal(t, "collect", h)

	_, ok = matchRoute("unrelated", routes)
	assert.False(t, ok)
}

// TestParamAccessors tests JSON-tolerant parameter reads
func TestParamAccessors(t *testing.T) {
	m := map[string]interface{}{
		"n":     float64(7),
		"s":     "3",
		"f":     2,
		"list":  []interface{}{"a", 1, "b"},
		"empty": "",
	}

	assert.Equal(t, 7, intParam(m, "n", 0))
	assert.Equal(t, 3, intParam(m, "s", 0))
	assert.Equal(t, 9, intParam(m, "missing", 9))
	assert.Equal(t, 2.0, floatParam(m, "f", 0))
	assert.Equal(t, "x", stringParam(m, "empty", "x"))
	assert.Equal(t, []string{"a", "b"}, stringSlice(m["list"]))
	assert.Equal(t, []string{"solo"}, stringSlice("solo"))
	assert.Equal(t, "Dress Pants", titleWords("dress_pants"))
}
