package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"markup", "<p>Hello <b>there</b></p><ul><li>one</li><li>two</li></ul>", "Hello there one two"},
		{"entities", "<p>a &amp; b</p>", "a & b"},
		{"empty editor output", "<p><br></p>", ""},
		{"whitespace only", "<p>  &nbsp; </p>", ""},
		{"script dropped", "<script>alert(1)</script><p>ok</p>", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestMentions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"alice", "Bob_2"},
		Mentions("thanks @alice and @Bob_2, also @ALICE again"))
	assert.Empty(t, Mentions("mail me at user@example.com"))
	assert.Empty(t, Mentions("@ab is too short"))
	assert.Equal(t, []string{"carol"}, Mentions("(@carol)"))
}
