package event

import (
	"context"
	"fmt"
	"regexp"

	"github.com/zjrosen/componentry/internal/cachemanager"
	"github.com/zjrosen/componentry/internal/log"
)

// Filter narrows the occurrences an event represents.
//
// Matches is not symmetric: f.Matches(g) asks whether f covers g, judged on
// g's Criterion.
type Filter interface {
	Criterion() string
	Matches(other Filter) bool
}

// AlwaysMatchingCriterion is the criterion reported by AlwaysMatching.
const AlwaysMatchingCriterion = ".*"

type alwaysMatchingFilter struct{}

func (alwaysMatchingFilter) Criterion() string { return AlwaysMatchingCriterion }

func (alwaysMatchingFilter) Matches(Filter) bool { return true }

func (alwaysMatchingFilter) String() string { return "always" }

// AlwaysMatching matches any filter.
var AlwaysMatching Filter = alwaysMatchingFilter{}

// FixedNameFilter matches filters whose criterion equals its name exactly.
type FixedNameFilter struct {
	name string
}

// FixedName returns a filter matching the exact string name.
func FixedName(name string) FixedNameFilter {
	return FixedNameFilter{name: name}
}

func (f FixedNameFilter) Criterion() string { return f.name }

func (f FixedNameFilter) Matches(other Filter) bool {
	if other == nil {
		return false
	}
	return other.Criterion() == f.name
}

func (f FixedNameFilter) String() string { return fmt.Sprintf("name(%s)", f.name) }

// RegexFilter matches filters whose criterion fully matches its pattern.
// Only the pattern source is stored so that two filters built from the same
// pattern compare equal.
type RegexFilter struct {
	pattern string
}

// Regex returns a filter for pattern, validating it first.
func Regex(pattern string) (RegexFilter, error) {
	if _, err := compile(pattern); err != nil {
		return RegexFilter{}, fmt.Errorf("invalid event filter pattern %q: %w", pattern, err)
	}
	return RegexFilter{pattern: pattern}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern string) RegexFilter {
	f, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

func (f RegexFilter) Criterion() string { return f.pattern }

func (f RegexFilter) Matches(other Filter) bool {
	if other == nil {
		return false
	}
	re, err := compile(f.pattern)
	if err != nil {
		log.ErrorErr(log.CatObservation, "regex filter failed to compile", err, "pattern", f.pattern)
		return false
	}
	return re.MatchString(other.Criterion())
}

func (f RegexFilter) String() string { return fmt.Sprintf("regex(%s)", f.pattern) }

// Compiled patterns are shared across all RegexFilter values. Entries
// expire after patternTTL without use.
var (
	patternTTL   = cachemanager.DefaultExpiration
	patternStore = cachemanager.NewInMemoryCacheManager[string, *regexp.Regexp](
		"event-filter-patterns",
		cachemanager.DefaultExpiration,
		cachemanager.DefaultCleanupInterval,
	)
	patternCache = cachemanager.NewReadThroughCache[string, *regexp.Regexp, string](
		patternStore, compileAnchored, false,
	)
)

// compileAnchored checks the pattern on its own before anchoring it, so an
// unbalanced group cannot escape the anchors.
func compileAnchored(_ context.Context, pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

func compile(pattern string) (*regexp.Regexp, error) {
	return patternCache.GetWithRefresh(context.Background(), pattern, pattern, patternTTL)
}
