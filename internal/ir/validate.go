package ir

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed snippet field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize fills defaults on a snippet about to be stored.
// Conditions are cleaned the way operators expect: blank URL lines are
// dropped, surrounding whitespace is trimmed, "any" filters are cleared.
func Normalize(s *Snippet) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Kind == "" {
		s.Kind = KindCode
	}
	if s.Scope == "" {
		s.Scope = ScopeEverywhere
	}
	s.Conditions = NormalizeConditions(s.Conditions)

	tags := s.Tags[:0:0]
	for _, t := range s.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}
	s.Tags = tags
}

// NormalizeConditions trims and drops empty entries.
func NormalizeConditions(c Conditions) Conditions {
	out := Conditions{
		Login:  strings.TrimSpace(c.Login),
		Device: strings.TrimSpace(c.Device),
	}
	if out.Login == LoginAny {
		out.Login = ""
	}
	if out.Device == DeviceAny {
		out.Device = ""
	}
	for _, p := range c.URLPatterns {
		if p = strings.TrimSpace(p); p != "" {
			out.URLPatterns = append(out.URLPatterns, p)
		}
	}
	return out
}

// SplitPatterns turns a newline separated pattern list into entries.
func SplitPatterns(text string) []string {
	return NormalizeConditions(Conditions{URLPatterns: strings.Split(text, "\n")}).URLPatterns
}

// Validate checks the fields an operator must get right before storing.
// Condition values are not validated here: unknown values simply never
// match at request time.
func Validate(s Snippet) error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !ValidKinds[s.Kind] {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", s.Kind)}
	}
	if !ValidScopes[s.Scope] {
		return &ValidationError{Field: "scope", Message: fmt.Sprintf("unknown scope %q", s.Scope)}
	}
	return nil
}
