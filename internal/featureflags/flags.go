// Package featureflags evaluates rollout switches read from FEATURE_FLAGS.
//
// The value is a comma separated list of name=setting pairs, where setting
// is on/off (or true/false, 1/0) or a percentage such as 25%. Percentages
// bucket users by a hash of the flag name and user id, so a user keeps the
// same answer across requests and a larger percentage only adds users.
package featureflags

import (
	"errors"
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// QuestionModeration holds new questions in the pending state until an
// admin publishes them.
const QuestionModeration = "question_moderation"

// Rule is one parsed flag. Percent is 0 for off and 100 for on.
type Rule struct {
	Name    string
	Percent int
}

// Status is a rule evaluated for one user.
type Status struct {
	Name    string `json:"name"`
	Rollout string `json:"rollout"`
	Enabled bool   `json:"enabled"`
}

// Set holds the parsed rules keyed by lower-case name.
type Set struct {
	rules map[string]Rule
}

// Parse reads raw and returns every well-formed rule. Malformed entries are
// reported together in the error; the returned Set is usable either way.
func Parse(raw string) (*Set, error) {
	set := &Set{rules: map[string]Rule{}}
	var errs []error
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rule, err := parseRule(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set.rules[rule.Name] = rule
	}
	return set, errors.Join(errs...)
}

func parseRule(entry string) (Rule, error) {
	name, setting, ok := strings.Cut(entry, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	setting = strings.ToLower(strings.TrimSpace(setting))
	if !ok || name == "" || setting == "" {
		return Rule{}, fmt.Errorf("flag %q: want name=setting", entry)
	}

	switch setting {
	case "on", "true", "1":
		return Rule{Name: name, Percent: 100}, nil
	case "off", "false", "0":
		return Rule{Name: name}, nil
	}
	digits, isPct := strings.CutSuffix(setting, "%")
	pct, err := strconv.Atoi(digits)
	if !isPct || err != nil || pct < 0 || pct > 100 {
		return Rule{}, fmt.Errorf("flag %q: setting %q is not on, off or 0-100%%", name, setting)
	}
	return Rule{Name: name, Percent: pct}, nil
}

// Enabled reports whether name is on for userID. Unknown flags are off, and
// partial rollouts are off for anonymous callers (userID 0).
func (s *Set) Enabled(name string, userID uint) bool {
	if s == nil {
		return false
	}
	rule, ok := s.rules[strings.ToLower(name)]
	if !ok {
		return false
	}
	switch {
	case rule.Percent >= 100:
		return true
	case rule.Percent <= 0, userID == 0:
		return false
	}
	return bucket(rule.Name, userID) < rule.Percent
}

// Gate binds a flag name. A nil Set yields a gate that is always off.
func (s *Set) Gate(name string) func(userID uint) bool {
	return func(userID uint) bool { return s.Enabled(name, userID) }
}

// Evaluate lists every rule with its result for userID, sorted by name.
func (s *Set) Evaluate(userID uint) []Status {
	if s == nil {
		return []Status{}
	}
	out := make([]Status, 0, len(s.rules))
	for _, name := range slices.Sorted(maps.Keys(s.rules)) {
		rule := s.rules[name]
		out = append(out, Status{
			Name:    name,
			Rollout: strconv.Itoa(rule.Percent) + "%",
			Enabled: s.Enabled(name, userID),
		})
	}
	return out
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", name, userID)
	return int(h.Sum32() % 100)
}
