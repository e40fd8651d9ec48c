package rules

import (
	"regexp"
	"strings"
)

// target is the resolved value a condition is applied to.
type target struct {
	// defined is false when the path points outside the message.
	defined bool
	// scalar is true when the value is a single text value; repeated and
	// composite values are not strings.
	scalar bool
	// text is the unescaped text of a scalar value.
	text string
	// content reports whether any part of the value is non empty.
	content bool
}

// predicate reports whether a rule is violated.
type predicate func(e *Engine, v target, arg string) bool

var predicates = map[Condition]predicate{
	Exists: func(_ *Engine, v target, _ string) bool {
		return !v.defined || !v.content
	},
	NotExists: func(_ *Engine, v target, _ string) bool {
		return v.defined && v.content
	},
	Equals: func(_ *Engine, v target, arg string) bool {
		return !v.defined || !v.scalar || v.text != arg
	},
	NotEquals: func(_ *Engine, v target, arg string) bool {
		return v.defined && v.scalar && v.text == arg
	},
	StartsWith: stringPredicate(strings.HasPrefix),
	EndsWith:   stringPredicate(strings.HasSuffix),
	Contains:   stringPredicate(strings.Contains),
	MatchesRegex: func(e *Engine, v target, arg string) bool {
		re := e.regex(arg)
		if re == nil {
			return false
		}
		return !v.defined || !v.scalar || !re.MatchString(v.text)
	},
}

// stringPredicate builds a predicate violated when the value is not a
// string or fails ok.
func stringPredicate(ok func(s, arg string) bool) predicate {
	return func(_ *Engine, v target, arg string) bool {
		return !v.defined || !v.scalar || !ok(v.text, arg)
	}
}

// compileRegex compiles pattern, returning nil for invalid patterns.
func compileRegex(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}
