package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Settings(t *testing.T) {
	set, err := Parse("a=on, B=TRUE,c=1,d=off,e=false,f=0,g=35%")
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "B", "c"} {
		assert.True(t, set.Enabled(name, 1), name)
	}
	for _, name := range []string{"d", "e", "f", "missing"} {
		assert.False(t, set.Enabled(name, 1), name)
	}
	assert.Equal(t, Rule{Name: "g", Percent: 35}, set.rules["g"])
}

func TestParse_ReportsBadEntriesButKeepsGoodOnes(t *testing.T) {
	set, err := Parse("x=on,, bad ,=on,w=,y=150%,z=abc%,q=maybe")
	require.Error(t, err)
	for _, fragment := range []string{`"bad"`, `"=on"`, `"w="`, `"y"`, `"z"`, `"q"`} {
		assert.Contains(t, err.Error(), fragment)
	}
	assert.True(t, set.Enabled("x", 1))
	assert.Len(t, set.Evaluate(1), 1)
}

func TestEnabled_PercentRollout(t *testing.T) {
	set, err := Parse("canary=30%,none=0%,all=100%")
	require.NoError(t, err)

	assert.True(t, set.Enabled("all", 0))
	assert.False(t, set.Enabled("none", 9))
	assert.False(t, set.Enabled("canary", 0), "anonymous callers are outside partial rollouts")

	first := set.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, set.Enabled("canary", 42))
	}

	on := 0
	for id := uint(1); id <= 1000; id++ {
		if set.Enabled("canary", id) {
			on++
		}
	}
	assert.InDelta(t, 300, on, 80)
}

func TestEnabled_WiderRolloutKeepsEarlierUsers(t *testing.T) {
	narrow, err := Parse("canary=10%")
	require.NoError(t, err)
	wide, err := Parse("canary=60%")
	require.NoError(t, err)

	for id := uint(1); id <= 500; id++ {
		if narrow.Enabled("canary", id) {
			assert.True(t, wide.Enabled("canary", id), "user %d", id)
		}
	}
}

func TestEvaluate_SortedByName(t *testing.T) {
	set, err := Parse("zeta=off,alpha=on,mid=50%")
	require.NoError(t, err)

	got := set.Evaluate(7)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "100%", got[0].Rollout)
	assert.True(t, got[0].Enabled)
	assert.Equal(t, "mid", got[1].Name)
	assert.Equal(t, Status{Name: "zeta", Rollout: "0%"}, got[2])
}

func TestGate_NilSet(t *testing.T) {
	set, err := Parse(QuestionModeration + "=on")
	require.NoError(t, err)
	assert.True(t, set.Gate(QuestionModeration)(7))

	var empty *Set
	assert.False(t, empty.Gate(QuestionModeration)(7))
	assert.Empty(t, empty.Evaluate(1))
}
