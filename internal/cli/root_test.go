package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "hyperhistory", cmd.Use)
	assert.Contains(t, cmd.Long, "journaling")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"keygen", "sign", "ingest", "passport", "messages", "replay", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestJournalCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"ingest", "passport", "messages", "replay"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			dbFlag := sub.Flags().Lookup("db")
			require.NotNil(t, dbFlag)
			// --db is required, so default is empty
			assert.Equal(t, "", dbFlag.DefValue)
			require.NotNil(t, sub.Flags().Lookup("caps"))
		})
	}
}

func TestIngestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	ingestCmd, _, err := cmd.Find([]string{"ingest"})
	require.NoError(t, err)

	workers := ingestCmd.Flags().Lookup("workers")
	require.NotNil(t, workers)
	assert.Equal(t, "4", workers.DefValue)

	horizon := ingestCmd.Flags().Lookup("dedup-horizon")
	require.NotNil(t, horizon)
	assert.Equal(t, "0", horizon.DefValue)

	require.NotNil(t, ingestCmd.Flags().Lookup("strict"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	require.NotNil(t, testCmd.Flags().Lookup("update"))
	require.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, NewRootCommand(), "--format", "xml", "keygen", "--seed", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("text"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
