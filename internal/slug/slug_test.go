package slug

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"How do I use goroutines?", "how-do-i-use-goroutines"},
		{"  C++ / Go  ", "c-go"},
		{"Crème brûlée à la mode", "creme-brulee-a-la-mode"},
		{"React.js", "react-js"},
		{"---", ""},
		{"日本語", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Make(tt.in), tt.in)
	}
}

func TestTag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"Go", "go"},
		{"C", "c"},
		{"C++", "c-plus-plus"},
		{"C#", "c-sharp"},
		{"F# / .NET", "f-sharp-net"},
		{"Crème", "creme"},
		{"日本語", "日本語"},
		{"???", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tag(tt.in), tt.in)
	}

	long := Tag(strings.Repeat("+", 50))
	assert.LessOrEqual(t, len(long), maxTag)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestUnique(t *testing.T) {
	t.Parallel()
	suffix := regexp.MustCompile(`-[0-9a-f]{8}$`)

	a, b := Unique("Same title"), Unique("Same title")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "same-title-"))
	assert.Regexp(t, suffix, a)

	long := Unique(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(long), maxBase+9)
	assert.NotContains(t, long, "--")

	assert.Regexp(t, `^[0-9a-f]{8}$`, Unique("???"))
}
