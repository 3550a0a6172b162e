package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword_ReportsFirstFailingRule(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		password string
		rule     string
	}{
		"short":          {"Ab1-short", "at least 12"},
		"long":           {"Ab1-" + strings.Repeat("x", 125), "exceed 128"},
		"no uppercase":   {"correct-horse-9", "uppercase"},
		"no lowercase":   {"CORRECT-HORSE-9", "lowercase"},
		"no digit":       {"Correct-Horse-Nine", "digit"},
		"no special":     {"CorrectHorse9x", "special"},
		"multibyte runs": {"Ab1-éééééé", "at least 12"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.rule)
		})
	}
}

func TestValidatePassword_Accepts(t *testing.T) {
	t.Parallel()
	for _, pw := range []string{
		"Correct-Horse-9",
		"StackIt-Demo-2024",
		"Ab1-" + strings.Repeat("x", 124),
		"Ångström-Läser-7",
	} {
		assert.NoError(t, ValidatePassword(pw), pw)
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		username string
		ok       bool
	}{
		{"ada", true},
		{"grace_hopper", true},
		{"Linus1991", true},
		{strings.Repeat("q", 30), true},
		{"al", false},
		{strings.Repeat("q", 31), false},
		{"ada.lovelace", false},
		{"ada-l", false},
		{"_ada", false},
		{"ada_", false},
		{"zoë", false},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.username)
		if tt.ok {
			assert.NoError(t, err, tt.username)
		} else {
			assert.Error(t, err, tt.username)
		}
	}
}

// Every valid username must be reachable by an @mention in a comment.
func TestValidUsernamesAreMentionable(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"ada", "grace_hopper", "Linus1991", strings.Repeat("q", 30)} {
		require.NoError(t, ValidateUsername(name))
		assert.Equal(t, []string{name}, Mentions("thanks @"+name+", that fixed it"), name)
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	for _, email := range []string{"ada@stackit.test", "grace.hopper+q@example.co.uk"} {
		assert.NoError(t, ValidateEmail(email), email)
	}
	for _, email := range []string{"ada@localhost", "ada at example.com", "@example.com", strings.Repeat("a", 250) + "@example.com"} {
		assert.Error(t, ValidateEmail(email), email)
	}
}
