package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] step %d %s %s\n", i+1, ev.Step, ev.Type, traceKey(ev))
	}
	return buf.String()
}

// traceKey renders an event as "id:outcome".
func traceKey(ev TraceEvent) string {
	return ev.SnippetID + ":" + ev.Outcome
}

func evaluateAssertions(result *Result, assertions []Assertion) {
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(err.Error())
		}
	}
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertOutcome:
		return assertOutcome(result, a)
	case AssertNoOutcome:
		return assertNoOutcome(result, a)
	case AssertOrder:
		return assertOrder(result, a)
	case AssertEnabled:
		return assertEnabled(result, a)
	case AssertSafeMode:
		return assertSafeMode(result, a)
	case AssertErrorLog:
		return assertErrorLog(result, a)
	case AssertErrorCount:
		return assertErrorCount(result, a)
	case AssertOutput:
		return assertOutput(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func matchesEvent(ev TraceEvent, a Assertion) bool {
	if ev.SnippetID != a.Snippet || ev.Outcome != a.Outcome {
		return false
	}
	return a.Step == 0 || ev.Step == a.Step
}

func assertOutcome(result *Result, a Assertion) error {
	for _, ev := range result.Trace {
		if matchesEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: fmt.Sprintf("%s:%s%s", a.Snippet, a.Outcome, stepSuffix(a.Step)),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

func assertNoOutcome(result *Result, a Assertion) error {
	for _, ev := range result.Trace {
		if matchesEvent(ev, a) {
			return &AssertionError{
				Type:     AssertNoOutcome,
				Expected: fmt.Sprintf("no %s:%s%s", a.Snippet, a.Outcome, stepSuffix(a.Step)),
				Actual:   fmt.Sprintf("found in step %d", ev.Step),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertOrder checks that the entries appear in order. Other events may
// appear in between.
func assertOrder(result *Result, a Assertion) error {
	next := 0
	for _, ev := range result.Trace {
		if next < len(a.Order) && traceKey(ev) == a.Order[next] {
			next++
		}
	}
	if next == len(a.Order) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOrder,
		Expected: strings.Join(a.Order, " -> "),
		Actual:   fmt.Sprintf("%q missing or out of order", a.Order[next]),
		Trace:    result.Trace,
	}
}

func assertEnabled(result *Result, a Assertion) error {
	got, ok := result.State.Enabled[a.Snippet]
	if !ok {
		return &AssertionError{
			Type:     AssertEnabled,
			Expected: fmt.Sprintf("snippet %s enabled=%t", a.Snippet, *a.Expect),
			Actual:   "snippet not found",
			Trace:    result.Trace,
		}
	}
	if got != *a.Expect {
		return &AssertionError{
			Type:     AssertEnabled,
			Expected: fmt.Sprintf("snippet %s enabled=%t", a.Snippet, *a.Expect),
			Actual:   fmt.Sprintf("enabled=%t", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertSafeMode(result *Result, a Assertion) error {
	if result.State.SafeMode == *a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertSafeMode,
		Expected: fmt.Sprintf("safe_mode=%t", *a.Expect),
		Actual:   fmt.Sprintf("safe_mode=%t", result.State.SafeMode),
		Trace:    result.Trace,
	}
}

func assertErrorLog(result *Result, a Assertion) error {
	for _, e := range result.State.ErrorLog {
		if e.SnippetID != a.Snippet {
			continue
		}
		msg := result.Messages[e.SnippetID]
		if a.Contains != "" && !strings.Contains(msg, a.Contains) {
			return &AssertionError{
				Type:     AssertErrorLog,
				Expected: fmt.Sprintf("message containing %q", a.Contains),
				Actual:   msg,
				Trace:    result.Trace,
			}
		}
		if a.Count != nil && e.Count != *a.Count {
			return &AssertionError{
				Type:     AssertErrorLog,
				Expected: fmt.Sprintf("count %d", *a.Count),
				Actual:   fmt.Sprintf("count %d", e.Count),
				Trace:    result.Trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertErrorLog,
		Expected: fmt.Sprintf("error log entry for %s", a.Snippet),
		Actual:   "no entry",
		Trace:    result.Trace,
	}
}

func assertErrorCount(result *Result, a Assertion) error {
	if len(result.State.ErrorLog) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertErrorCount,
		Expected: fmt.Sprintf("%d entries", *a.Count),
		Actual:   fmt.Sprintf("%d entries", len(result.State.ErrorLog)),
		Trace:    result.Trace,
	}
}

func assertOutput(result *Result, a Assertion) error {
	out := result.Outputs[a.Step]
	if strings.Contains(out, a.Contains) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutput,
		Expected: fmt.Sprintf("step %d output containing %q", a.Step, a.Contains),
		Actual:   fmt.Sprintf("%q", out),
		Trace:    result.Trace,
	}
}

func stepSuffix(step int) string {
	if step == 0 {
		return ""
	}
	return fmt.Sprintf(" in step %d", step)
}
