package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: ok
description: parses
batch: b-1
servers:
  - identity: hall
    admins: [mod]
steps:
  - author: alice
    action: v1.members.passport.update
    field: age
    value: 42
  - redeliver: 0
    expect: { status: duplicate }
assertions:
  - type: restore_equivalent
`))
	require.NoError(t, err)

	assert.Equal(t, "ok", s.Name)
	assert.Equal(t, "b-1", s.Batch)
	require.Len(t, s.Servers, 1)
	assert.Equal(t, []string{"mod"}, s.Servers[0].Admins)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, 42, s.Steps[0].Value)
	require.NotNil(t, s.Steps[1].Redeliver)
	assert.Equal(t, 0, *s.Steps[1].Redeliver)
	assert.Equal(t, "duplicate", s.Steps[1].Expect.Status)
}

func TestParseScenario_Invalid(t *testing.T) {
	const header = "name: x\ndescription: y\n"
	const step = "steps:\n  - author: a\n    action: v1.members.messages.new\n"
	const assertion = "assertions:\n  - type: restore_equivalent\n"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: y\n" + step + assertion, "name is required"},
		{"missing description", "name: x\n" + step + assertion, "description is required"},
		{"no steps", header + assertion, "steps list is required"},
		{"no assertions", header + step, "assertions list is required"},
		{"unknown field", header + step + assertion + "extra: 1\n", "field extra not found"},
		{"unknown action", header + "steps:\n  - author: a\n    action: v2.nope\n" + assertion, `unknown action "v2.nope"`},
		{"missing author", header + "steps:\n  - action: v1.members.messages.new\n" + assertion, "author is required"},
		{"missing field", header + "steps:\n  - author: a\n    action: v1.members.passport.delete\n" + assertion, "field is required"},
		{"field on message", header + "steps:\n  - author: a\n    action: v1.members.messages.new\n    field: f\n" + assertion, "field is not valid"},
		{"forward redeliver", header + "steps:\n  - redeliver: 0\n" + assertion, "redeliver must reference an earlier step"},
		{"bad status", header + "steps:\n  - author: a\n    action: v1.members.messages.new\n    expect: { status: ok }\n" + assertion, `unknown status "ok"`},
		{"code without rejection", header + "steps:\n  - author: a\n    action: v1.members.messages.new\n    expect: { status: applied, code: x }\n" + assertion, "code is only valid"},
		{"server without identity", header + "servers:\n  - owner: o\n" + step + assertion, "servers[0]: identity is required"},
		{"unknown assertion", header + step + "assertions:\n  - type: nope\n", `unknown assertion type "nope"`},
		{"passport_field without field", header + step + "assertions:\n  - type: passport_field\n    identity: a\n", "identity and field are required"},
		{"outcome_count without status", header + step + "assertions:\n  - type: outcome_count\n", "status is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from_file
description: loads
steps:
  - author: alice
    action: v1.members.messages.new
    message: hi
assertions:
  - type: journal_count
    count: 1
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", s.Name)
}
