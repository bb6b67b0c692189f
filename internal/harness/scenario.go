package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/snipd/internal/ir"
)

// Scenario defines a harness scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SafeMode is the flag's value when the scenario starts.
	SafeMode bool `yaml:"safe_mode,omitempty"`

	// CrashMarkers replaces the engine's default markers when set.
	CrashMarkers []string `yaml:"crash_markers,omitempty"`

	// Snippets are stored before the first step. A missing name defaults
	// to the id.
	Snippets []ir.Snippet `yaml:"snippets"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is exactly one action against the engine.
type Step struct {
	Request  *RequestStep `yaml:"request,omitempty"`
	Inline   *InlineStep  `yaml:"inline,omitempty"`
	Crash    *CrashStep   `yaml:"crash,omitempty"`
	SafeMode string       `yaml:"safe_mode,omitempty"` // on | off | toggle
	Recover  bool         `yaml:"recover,omitempty"`
	Restart  bool         `yaml:"restart,omitempty"`
}

// RequestStep runs a full page pass.
type RequestStep struct {
	Path          string `yaml:"path"`
	Admin         bool   `yaml:"admin,omitempty"`
	Authenticated bool   `yaml:"authenticated,omitempty"`
	Mobile        bool   `yaml:"mobile,omitempty"`

	// Body is passed through body filters; its result is the step output.
	Body string `yaml:"body,omitempty"`
}

// InlineStep references one snippet by id.
type InlineStep struct {
	ID    string `yaml:"id"`
	Path  string `yaml:"path,omitempty"`
	Admin bool   `yaml:"admin,omitempty"`
}

// CrashStep simulates the process dying while Snippet runs: the marker is
// left set, Output is written as the runtime's crash report, and the
// engine is restarted to recover.
type CrashStep struct {
	Snippet string `yaml:"snippet"`
	Output  string `yaml:"output,omitempty"`
}

// Assertion checks the trace or final state.
type Assertion struct {
	Type     string   `yaml:"type"`
	Snippet  string   `yaml:"snippet,omitempty"`
	Outcome  string   `yaml:"outcome,omitempty"`
	Step     int      `yaml:"step,omitempty"`
	Contains string   `yaml:"contains,omitempty"`
	Expect   *bool    `yaml:"expect,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
	Order    []string `yaml:"order,omitempty"`
}

// Assertion types.
const (
	AssertOutcome    = "outcome"     // snippet reached outcome (optionally in step)
	AssertNoOutcome  = "no_outcome"  // snippet never reached outcome
	AssertOrder      = "order"       // "id:outcome" entries appear in order
	AssertEnabled    = "enabled"     // snippet's final enabled flag
	AssertSafeMode   = "safe_mode"   // final safe-mode flag
	AssertErrorLog   = "error_log"   // snippet has an entry, optionally containing text / with count
	AssertErrorCount = "error_count" // number of error log entries
	AssertOutput     = "output"      // step output contains text
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := map[string]bool{}
	for i, sn := range s.Snippets {
		if sn.ID == "" {
			return fmt.Errorf("snippets[%d]: id is required", i)
		}
		if seen[sn.ID] {
			return fmt.Errorf("snippets[%d]: duplicate id %q", i, sn.ID)
		}
		seen[sn.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	n := 0
	if step.Request != nil {
		n++
	}
	if step.Inline != nil {
		n++
		if step.Inline.ID == "" {
			return fmt.Errorf("steps[%d].inline: id is required", index)
		}
	}
	if step.Crash != nil {
		n++
	}
	if step.SafeMode != "" {
		n++
		switch step.SafeMode {
		case "on", "off", "toggle":
		default:
			return fmt.Errorf("steps[%d]: safe_mode must be on, off or toggle", index)
		}
	}
	if step.Recover {
		n++
	}
	if step.Restart {
		n++
	}
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, n)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutcome, AssertNoOutcome:
		if a.Snippet == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: snippet and outcome are required for %s", index, a.Type)
		}
	case AssertOrder:
		if len(a.Order) == 0 {
			return fmt.Errorf("assertions[%d]: order list is required", index)
		}
	case AssertEnabled:
		if a.Snippet == "" || a.Expect == nil {
			return fmt.Errorf("assertions[%d]: snippet and expect are required for enabled", index)
		}
	case AssertSafeMode:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for safe_mode", index)
		}
	case AssertErrorLog:
		if a.Snippet == "" {
			return fmt.Errorf("assertions[%d]: snippet is required for error_log", index)
		}
	case AssertErrorCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for error_count", index)
		}
	case AssertOutput:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step must be between 1 and %d", index, steps)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
