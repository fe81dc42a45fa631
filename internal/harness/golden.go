package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hyperhistory/internal/value"
)

// Snapshot renders a scenario result as canonical JSON for golden
// comparison. Identities appear by name; signatures and fingerprints are
// left out so snapshots stay readable.
func Snapshot(scenarioName, batch string, result *Result) ([]byte, error) {
	if batch == "" {
		batch = "test-batch-default"
	}

	outcomes := make(value.Array, len(result.Trace))
	for i, event := range result.Trace {
		entry := value.Object{
			"step":   value.Int(event.Step),
			"author": value.String(event.Author),
			"kind":   value.String(event.Kind),
			"status": value.String(event.Status),
		}
		if event.Code != "" {
			entry["code"] = value.String(event.Code)
		}
		if event.Seq != 0 {
			entry["seq"] = value.Int(event.Seq)
		}
		outcomes[i] = entry
	}

	passports := value.Object{}
	for name, fields := range result.State.Passports {
		obj := value.Object{}
		for field, fs := range fields {
			obj[field] = value.Object{
				"value":  fs.Value,
				"signer": value.String(fs.Signer),
			}
		}
		passports[name] = obj
	}

	channels := value.Object{}
	for id, msgs := range result.State.Channels {
		arr := make(value.Array, len(msgs))
		for i, m := range msgs {
			arr[i] = value.Object{
				"seq":    value.Int(m.Seq),
				"author": value.String(m.Author),
				"text":   value.String(m.Text),
			}
		}
		channels[channelKey(id)] = arr
	}

	return value.MarshalCanonical(value.Object{
		"scenario": value.String(scenarioName),
		"batch":    value.String(batch),
		"outcomes": outcomes,
		"state": value.Object{
			"applied":   value.Int(result.State.Applied),
			"passports": passports,
			"channels":  channels,
		},
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot, err := Snapshot(scenario.Name, scenario.Batch, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return result, nil
}
