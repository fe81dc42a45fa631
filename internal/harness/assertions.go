package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/hyperhistory/internal/capability"
	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/store"
	"github.com/roach88/hyperhistory/internal/testutil"
	"github.com/roach88/hyperhistory/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes the step trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		line := fmt.Sprintf("  [%d] %s %s %s", event.Step, event.Author, event.Kind, event.Status)
		if event.Code != "" {
			line += " " + event.Code
		}
		fmt.Fprintln(&buf, line)
	}

	return buf.String()
}

// AssertionContext provides what assertions evaluate against.
type AssertionContext struct {
	Ctx        context.Context
	Engine     *engine.Engine
	Store      *store.Store
	Caps       *capability.Registry
	Identities *testutil.Identities
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// Journal and restore assertions need actx.Store.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPassportField:
			err = assertPassportField(result, assertion)
		case AssertPassportAbsent:
			err = assertPassportAbsent(result, assertion)
		case AssertChannelOrder:
			err = assertChannelOrder(result, assertion)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result, assertion)
		case AssertJournalCount, AssertRejectionCount, AssertRestoreEquivalent:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a journal", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertJournalCount:
				err = assertJournalCount(actx, result, assertion)
			case AssertRejectionCount:
				err = assertRejectionCount(actx, result, assertion)
			default:
				err = assertRestoreEquivalent(actx, result)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertPassportField(result *Result, a Assertion) error {
	fields, ok := result.State.Passports[a.Identity]
	if !ok {
		return &AssertionError{
			Type:     AssertPassportField,
			Expected: fmt.Sprintf("passport for %s", a.Identity),
			Actual:   "no passport",
			Trace:    result.Trace,
		}
	}

	got, ok := fields[a.Field]
	if !ok {
		return &AssertionError{
			Type:     AssertPassportField,
			Expected: fmt.Sprintf("%s.%s present", a.Identity, a.Field),
			Actual:   "field missing",
			Trace:    result.Trace,
		}
	}

	want, err := value.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("passport_field: expected value: %w", err)
	}
	if !value.Equal(want, got.Value) {
		return &AssertionError{
			Type:     AssertPassportField,
			Expected: fmt.Sprintf("%s.%s = %s", a.Identity, a.Field, render(want)),
			Actual:   render(got.Value),
			Trace:    result.Trace,
		}
	}

	if a.Signer != "" && a.Signer != got.Signer {
		return &AssertionError{
			Type:     AssertPassportField,
			Expected: fmt.Sprintf("%s.%s signed by %s", a.Identity, a.Field, a.Signer),
			Actual:   fmt.Sprintf("signed by %s", got.Signer),
			Trace:    result.Trace,
		}
	}

	return nil
}

func assertPassportAbsent(result *Result, a Assertion) error {
	fields, ok := result.State.Passports[a.Identity]
	if a.Field == "" {
		if ok {
			return &AssertionError{
				Type:     AssertPassportAbsent,
				Expected: fmt.Sprintf("no passport for %s", a.Identity),
				Actual:   fmt.Sprintf("passport with %d fields", len(fields)),
				Trace:    result.Trace,
			}
		}
		return nil
	}

	if got, present := fields[a.Field]; present {
		return &AssertionError{
			Type:     AssertPassportAbsent,
			Expected: fmt.Sprintf("%s.%s absent", a.Identity, a.Field),
			Actual:   render(got.Value),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertChannelOrder(result *Result, a Assertion) error {
	msgs := result.State.Channels[a.Channel]
	got := make([]string, len(msgs))
	for i, m := range msgs {
		got[i] = m.Text
	}

	want := a.Messages
	if want == nil {
		want = []string{}
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertChannelOrder,
			Expected: fmt.Sprintf("channel %d = %q", a.Channel, want),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertOutcomeCount(result *Result, a Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Status == a.Status && (a.Code == "" || event.Code == a.Code) {
			count++
		}
	}

	if count != a.Count {
		what := a.Status
		if a.Code != "" {
			what += " (" + a.Code + ")"
		}
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d %s outcomes", a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertJournalCount(actx *AssertionContext, result *Result, a Assertion) error {
	count, err := actx.Store.CountBlocks(actx.Ctx)
	if err != nil {
		return fmt.Errorf("journal_count: %w", err)
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journaled blocks", a.Count),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRejectionCount(actx *AssertionContext, result *Result, a Assertion) error {
	rejections, err := actx.Store.ReadRejections(actx.Ctx)
	if err != nil {
		return fmt.Errorf("rejection_count: %w", err)
	}

	count := 0
	for _, r := range rejections {
		if a.Code == "" || r.Code == a.Code {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertRejectionCount,
			Expected: fmt.Sprintf("%d audited rejections", a.Count),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertRestoreEquivalent replays the journal into a fresh engine under the
// same capabilities and compares exported state.
func assertRestoreEquivalent(actx *AssertionContext, result *Result) error {
	if actx.Engine == nil {
		return fmt.Errorf("restore_equivalent requires the live engine")
	}

	var caps engine.Capabilities
	if actx.Caps != nil {
		caps = actx.Caps
	}
	restored := engine.New(caps, engine.WithLogger(discardLogger()))
	if _, err := restored.Restore(actx.Ctx, actx.Store); err != nil {
		return fmt.Errorf("restore_equivalent: %w", err)
	}

	live, replayed := actx.Engine.Snapshot(), restored.Snapshot()
	if !reflect.DeepEqual(live, replayed) {
		return &AssertionError{
			Type:     AssertRestoreEquivalent,
			Expected: fmt.Sprintf("restored state equal to live state (%d applied)", live.Applied),
			Actual:   fmt.Sprintf("restored state differs (%d applied)", replayed.Applied),
			Trace:    result.Trace,
		}
	}
	return nil
}

func render(v value.Value) string {
	b, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
