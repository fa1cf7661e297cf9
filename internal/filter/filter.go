// Package filter selects which out-of-office events feed the plan.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/caat/supper/internal/calendar"
	"github.com/caat/supper/internal/config"
)

// MatchType specifies how a filter rule matches.
type MatchType int

const (
	MatchContains MatchType = iota // Substring match (default)
	MatchExact                     // Exact string match
	MatchPrefix                    // Starts with
	MatchSuffix                    // Ends with
	MatchRegex                     // Regular expression
)

// Filter applies include and exclude rules to events.
type Filter struct {
	mode    string // "or" or "and"
	include []rule
	exclude []rule
}

type rule struct {
	field           string
	matchType       MatchType
	pattern         string         // For non-regex matches
	regex           *regexp.Regexp // For regex matches
	caseInsensitive bool
}

// New creates a new filter from configuration.
func New(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{
		mode: cfg.Mode,
	}

	if f.mode == "" {
		f.mode = "or"
	}

	for i, r := range cfg.Rules {
		compiled, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if r.Exclude {
			f.exclude = append(f.exclude, compiled)
		} else {
			f.include = append(f.include, compiled)
		}
	}

	return f, nil
}

// compileRule converts a config FilterRule to an internal rule.
func compileRule(r config.FilterRule) (rule, error) {
	compiled := rule{
		field:           r.Field,
		caseInsensitive: r.CaseInsensitive,
	}

	switch r.Field {
	case "subject", "title", "organizer", "attendee":
	default:
		return compiled, fmt.Errorf("unknown field %q (use subject, organizer or attendee)", r.Field)
	}

	switch {
	case r.Regex != "":
		compiled.matchType = MatchRegex
		pattern := r.Regex
		if r.CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compiled, fmt.Errorf("invalid regex %q: %w", r.Regex, err)
		}
		compiled.regex = re
		return compiled, nil
	case r.Exact != "":
		compiled.matchType = MatchExact
		compiled.pattern = r.Exact
	case r.Prefix != "":
		compiled.matchType = MatchPrefix
		compiled.pattern = r.Prefix
	case r.Suffix != "":
		compiled.matchType = MatchSuffix
		compiled.pattern = r.Suffix
	case r.Contains != "":
		compiled.matchType = MatchContains
		compiled.pattern = r.Contains
	default:
		return compiled, fmt.Errorf("no match pattern specified (use contains, exact, prefix, suffix, or regex)")
	}

	if r.CaseInsensitive {
		compiled.pattern = strings.ToLower(compiled.pattern)
	}
	return compiled, nil
}

// Apply returns the events that pass the include rules and match no exclude
// rule. With no include rules every event passes the include step.
func (f *Filter) Apply(events []calendar.Event) []calendar.Event {
	if len(f.include) == 0 && len(f.exclude) == 0 {
		return events
	}

	var filtered []calendar.Event
	for _, event := range events {
		if len(f.include) > 0 && !f.matches(event) {
			continue
		}
		if anyMatch(f.exclude, event) {
			continue
		}
		filtered = append(filtered, event)
	}
	return filtered
}

// matches checks if an event matches the include rules.
func (f *Filter) matches(event calendar.Event) bool {
	if f.mode == "and" {
		for _, r := range f.include {
			if !r.matches(event) {
				return false
			}
		}
		return true
	}
	return anyMatch(f.include, event)
}

func anyMatch(rules []rule, event calendar.Event) bool {
	for _, r := range rules {
		if r.matches(event) {
			return true
		}
	}
	return false
}

// matches checks if an event matches a single rule. Attendee rules match if
// any attendee's name or email matches.
func (r *rule) matches(event calendar.Event) bool {
	for _, value := range r.fieldValues(event) {
		if r.matchValue(value) {
			return true
		}
	}
	return false
}

func (r *rule) matchValue(value string) bool {
	if r.caseInsensitive && r.matchType != MatchRegex {
		value = strings.ToLower(value)
	}

	switch r.matchType {
	case MatchRegex:
		return r.regex.MatchString(value)
	case MatchExact:
		return value == r.pattern
	case MatchPrefix:
		return strings.HasPrefix(value, r.pattern)
	case MatchSuffix:
		return strings.HasSuffix(value, r.pattern)
	default:
		return strings.Contains(value, r.pattern)
	}
}

// fieldValues extracts the values a rule is tested against.
func (r *rule) fieldValues(event calendar.Event) []string {
	switch r.field {
	case "subject", "title":
		return []string{event.Subject}
	case "organizer":
		return []string{event.Organizer.Name, event.Organizer.Email}
	case "attendee":
		values := make([]string, 0, 2*len(event.Attendees))
		for _, a := range event.Attendees {
			values = append(values, a.Name, a.Email)
		}
		return values
	default:
		return nil
	}
}
