package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/snipd/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNameEmpty       = "E101" // name is required
	ErrUnknownKind     = "E102" // kind outside the known set
	ErrUnknownScope    = "E103" // scope outside the known set
	ErrUnknownLogin    = "E104" // login filter never matches
	ErrUnknownDevice   = "E105" // device filter never matches
	ErrCodeInvalid     = "E106" // code does not tokenize or imports a forbidden package
	ErrPatternTooBroad = "E107" // url pattern made only of wildcards
)

// ValidationError represents a definition validation error.
type ValidationError struct {
	ID      string `json:"id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Line > 0 {
		prefix += fmt.Sprintf(" line %d:", e.Line)
	}
	if e.ID != "" {
		return fmt.Sprintf("%s %s.%s: %s", prefix, e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", prefix, e.Field, e.Message)
}

// CodeChecker reports why code content would not load.
type CodeChecker func(src string) error

// Validate checks one compiled definition.
// Returns all errors found (does not fail-fast). check may be nil.
func Validate(sn ir.Snippet, check CodeChecker) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			ID:      sn.ID,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(sn.Name) == "" {
		add("name", ErrNameEmpty, "name is required")
	}
	if !ir.ValidKinds[sn.Kind] {
		add("kind", ErrUnknownKind, "unknown kind %q", sn.Kind)
	}
	if !ir.ValidScopes[sn.Scope] {
		add("scope", ErrUnknownScope, "unknown scope %q", sn.Scope)
	}

	switch sn.Conditions.Login {
	case "", ir.LoginAny, ir.LoginLoggedIn, ir.LoginLoggedOut:
	default:
		add("conditions.login", ErrUnknownLogin, "unknown login filter %q never matches", sn.Conditions.Login)
	}
	switch sn.Conditions.Device {
	case "", ir.DeviceAny, ir.DeviceDesktop, ir.DeviceMobile:
	default:
		add("conditions.device", ErrUnknownDevice, "unknown device filter %q never matches", sn.Conditions.Device)
	}
	for _, p := range sn.Conditions.URLPatterns {
		if strings.Trim(p, "*") == "" {
			add("conditions.url_patterns", ErrPatternTooBroad, "pattern %q matches every path", p)
		}
	}

	if sn.Kind.IsCode() && check != nil && strings.TrimSpace(sn.Content) != "" {
		if err := check(sn.Content); err != nil {
			add("content", ErrCodeInvalid, "%v", err)
		}
	}
	return errs
}
