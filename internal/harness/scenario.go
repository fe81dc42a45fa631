package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hyperhistory/internal/history"
)

// Scenario is a scripted sequence of deliveries plus the checks to run
// against the resulting state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Batch is the fixed batch token stamped on every journaled block.
	// If empty, defaults to "test-batch-default".
	Batch string `yaml:"batch,omitempty"`

	// Servers registers server owners and administrators.
	Servers []ServerGrant `yaml:"servers,omitempty"`

	// Steps are delivered one at a time, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ServerGrant registers one server in the capability registry.
type ServerGrant struct {
	Identity string   `yaml:"identity"`
	Owner    string   `yaml:"owner,omitempty"`
	Admins   []string `yaml:"admins,omitempty"`
}

// Step is one delivery. See the package documentation for field meanings.
type Step struct {
	Author        string `yaml:"author,omitempty"`
	Action        string `yaml:"action,omitempty"`
	Server        string `yaml:"server,omitempty"`
	Member        string `yaml:"member,omitempty"`
	Field         string `yaml:"field,omitempty"`
	Value         any    `yaml:"value,omitempty"`
	Signer        string `yaml:"signer,omitempty"`
	ClaimedSigner string `yaml:"claimed_signer,omitempty"`
	ForgedBy      string `yaml:"forged_by,omitempty"`
	Channel       uint64 `yaml:"channel,omitempty"`
	Message       string `yaml:"message,omitempty"`
	Redeliver     *int   `yaml:"redeliver,omitempty"`

	// Expect is checked against the step's outcome. If nil, any outcome passes.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Status is "applied", "duplicate" or "rejected".
	Status string `yaml:"status"`

	// Code is the expected rejection code. Only valid with "rejected".
	Code string `yaml:"code,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "passport_field": identity has field with value
	// - "passport_absent": field (or whole passport) missing
	// - "channel_order": channel holds messages in order
	// - "outcome_count": count outcomes with status (and code)
	// - "journal_count": count journaled blocks
	// - "rejection_count": count audited rejections (with code)
	// - "restore_equivalent": replaying the journal reproduces state
	Type string `yaml:"type"`

	Identity string   `yaml:"identity,omitempty"`
	Field    string   `yaml:"field,omitempty"`
	Value    any      `yaml:"value,omitempty"`
	Signer   string   `yaml:"signer,omitempty"`
	Channel  uint64   `yaml:"channel,omitempty"`
	Messages []string `yaml:"messages,omitempty"`
	Status   string   `yaml:"status,omitempty"`
	Code     string   `yaml:"code,omitempty"`
	Count    int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPassportField     = "passport_field"
	AssertPassportAbsent    = "passport_absent"
	AssertChannelOrder      = "channel_order"
	AssertOutcomeCount      = "outcome_count"
	AssertJournalCount      = "journal_count"
	AssertRejectionCount    = "rejection_count"
	AssertRestoreEquivalent = "restore_equivalent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

	for i, grant := range s.Servers {
		if grant.Identity == "" {
			return fmt.Errorf("servers[%d]: identity is required", i)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	if step.Expect != nil {
		if err := validateExpect(index, step.Expect); err != nil {
			return err
		}
	}

	if step.Redeliver != nil {
		if *step.Redeliver < 0 || *step.Redeliver >= index {
			return fmt.Errorf("steps[%d]: redeliver must reference an earlier step, got %d", index, *step.Redeliver)
		}
		return nil
	}

	if step.Author == "" {
		return fmt.Errorf("steps[%d]: author is required", index)
	}

	kind := history.Kind(step.Action)
	if !kind.Valid() {
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	switch kind {
	case history.KindMembersMessagesNew:
		if step.Field != "" {
			return fmt.Errorf("steps[%d]: field is not valid for %s", index, kind)
		}
	default:
		if step.Field == "" {
			return fmt.Errorf("steps[%d]: field is required for %s", index, kind)
		}
	}

	return nil
}

func validateExpect(index int, e *ExpectClause) error {
	switch e.Status {
	case "applied", "duplicate":
		if e.Code != "" {
			return fmt.Errorf("steps[%d].expect: code is only valid with status rejected", index)
		}
	case "rejected":
	default:
		return fmt.Errorf("steps[%d].expect: unknown status %q", index, e.Status)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPassportField:
		if a.Identity == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: identity and field are required for passport_field", index)
		}
	case AssertPassportAbsent:
		if a.Identity == "" {
			return fmt.Errorf("assertions[%d]: identity is required for passport_absent", index)
		}
	case AssertOutcomeCount:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertJournalCount, AssertRejectionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertChannelOrder, AssertRestoreEquivalent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
