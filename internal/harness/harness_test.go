package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperhistory/internal/value"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestScenarios_Pass(t *testing.T) {
	for _, name := range []string{"passport_forgery", "channel_order", "server_delegation"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"passport_forgery", "channel_order"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "server_delegation")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, s.Batch, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, s.Batch, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ServerDelegationState(t *testing.T) {
	result, err := Run(loadTestScenario(t, "server_delegation"))
	require.NoError(t, err)

	hall, ok := result.State.Passports["hall"]
	require.True(t, ok)
	assert.Equal(t, FieldState{Value: value.String("Great Hall"), Signer: "moderator"}, hall["title"])
	assert.NotContains(t, hall, "motd")
	assert.Equal(t, 3, result.State.Applied)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := &Scenario{
		Name:        "expect_mismatch",
		Description: "wrong expectations are reported",
		Steps: []Step{
			{Author: "alice", Action: "v1.members.messages.new", Channel: 1, Message: "hi", Expect: &ExpectClause{Status: "rejected"}},
			{Author: "bob", Action: "v1.members.passport.update", Member: "alice", Field: "x", Value: 1, Expect: &ExpectClause{Status: "rejected", Code: "invalid_value"}},
		},
		Assertions: []Assertion{{Type: AssertOutcomeCount, Status: "applied", Count: 1}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected status rejected, got applied")
	assert.Contains(t, result.Errors[1], "expected rejection code invalid_value, got not_owner")
}

func TestRun_AssertionFailureIncludesTrace(t *testing.T) {
	s := &Scenario{
		Name:        "assertion_failure",
		Description: "failed assertions carry the trace",
		Steps: []Step{
			{Author: "alice", Action: "v1.members.passport.update", Field: "nickname", Value: "Alice"},
		},
		Assertions: []Assertion{
			{Type: AssertPassportField, Identity: "alice", Field: "nickname", Value: "Alicia"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `Expected: alice.nickname = "Alicia"`)
	assert.Contains(t, result.Errors[0], `Actual: "Alice"`)
	assert.Contains(t, result.Errors[0], "[0] alice v1.members.passport.update applied")
}

func TestRun_DefaultBatch(t *testing.T) {
	s := &Scenario{
		Name:        "default_batch",
		Description: "batch defaults",
		Steps:       []Step{{Author: "alice", Action: "v1.members.messages.new", Message: "hi"}},
		Assertions:  []Assertion{{Type: AssertJournalCount, Count: 1}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	snap, err := Snapshot(s.Name, s.Batch, result)
	require.NoError(t, err)
	assert.Contains(t, string(snap), `"batch":"test-batch-default"`)
	assert.Contains(t, string(snap), `"channels":{"0":[`)
}
