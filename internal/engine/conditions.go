package engine

import (
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/snipd/internal/ir"
)

// Matches reports whether a request satisfies a snippet's conditions.
//
// Every present field must hold. Within the URL pattern list one match is
// enough. Values the evaluator does not recognize never match; they are
// not reported anywhere.
func Matches(c ir.Conditions, rc ir.RequestContext) bool {
	switch strings.TrimSpace(c.Login) {
	case "", ir.LoginAny:
	case ir.LoginLoggedIn:
		if !rc.Authenticated {
			return false
		}
	case ir.LoginLoggedOut:
		if rc.Authenticated {
			return false
		}
	default:
		return false
	}

	switch strings.TrimSpace(c.Device) {
	case "", ir.DeviceAny:
	case ir.DeviceMobile:
		if !rc.Mobile {
			return false
		}
	case ir.DeviceDesktop:
		if rc.Mobile {
			return false
		}
	default:
		return false
	}

	return matchesAnyPattern(c.URLPatterns, rc.Path)
}

// matchesAnyPattern is true when the list has no usable pattern or at
// least one pattern matches path.
func matchesAnyPattern(patterns []string, path string) bool {
	constrained := false
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		constrained = true
		if MatchPattern(p, path) {
			return true
		}
	}
	return !constrained
}

// MatchPattern applies one URL pattern to a path.
//
// Without "*" the pattern matches when it occurs anywhere in path. With
// "*" it must match all of path, case-insensitively, "*" standing for any
// run of characters.
func MatchPattern(pattern, path string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(path, pattern)
	}
	return globRegexp(pattern).MatchString(path)
}

var globCache sync.Map // pattern -> *regexp.Regexp

func globRegexp(pattern string) *regexp.Regexp {
	if re, ok := globCache.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile("(?is)^" + strings.Join(parts, ".*") + "$")
	globCache.Store(pattern, re)
	return re
}
