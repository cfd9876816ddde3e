package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		match   bool
	}{
		{"*", "anything", true},
		{"", "anything", true},
		{"host1:*", "host1:cpu", true},
		{"host1:*", "host10:cpu", false},
		{"*:cpu", "host1:cpu", true},
		{"host?:cpu", "host1:cpu", true},
		{"host?:cpu", "host12:cpu", false},
		{"a.b", "axb", false},
		{"[x]*", "[x]y", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			re, err := compilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.match, re.MatchString(tt.key))
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%", likePattern(""))
	assert.Equal(t, "host1:%", likePattern("host1:*"))
	assert.Equal(t, "host_:cpu", likePattern("host?:cpu"))
	assert.Equal(t, `50\%\_x`, likePattern("50%_x"))
}

func TestMergeMembers(t *testing.T) {
	merged, changed := mergeMembers([]string{"b", "a"}, "c", "a")
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b", "c"}, merged)

	_, changed = mergeMembers([]string{"a"}, "a")
	assert.False(t, changed)
}
