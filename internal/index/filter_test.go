package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathFilterNoConstraintsMatchesEverything(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/a.go", nil, nil))
}

func TestPathFilterPathsDescendant(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/src/a.go", []string{"/repo/src"}, nil))
	assert.False(t, f.Matches("/repo/srcother/a.go", []string{"/repo/src"}, nil))
	assert.False(t, f.Matches("/other/a.go", []string{"/repo/src"}, nil))
}

func TestPathFilterPathsExactMatch(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/src", []string{"/repo/src"}, nil))
}

func TestPathFilterBareExtensionFilter(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/docs/readme.md", nil, []string{"*.md"}))
	assert.True(t, f.Matches("/repo/readme.md", nil, []string{"*.md"}))
	assert.False(t, f.Matches("/repo/readme.go", nil, []string{"*.md"}))
}

func TestPathFilterAnchoredFilter(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/docs/readme.md", nil, []string{"docs/*.md"}))
	assert.False(t, f.Matches("/repo/other/readme.md", nil, []string{"docs/*.md"}))
}

func TestPathFilterDoubleStarMatchesAnyDepth(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/a/b/c/readme.md", nil, []string{"**/readme.md"}))
	assert.True(t, f.Matches("/repo/readme.md", nil, []string{"**/readme.md"}))
}

func TestPathFilterCombinedConstraints(t *testing.T) {
	f := NewPathFilter()
	assert.True(t, f.Matches("/repo/src/a.go", []string{"/repo/src"}, []string{"*.go"}))
	assert.False(t, f.Matches("/repo/src/a.md", []string{"/repo/src"}, []string{"*.go"}))
}
