package cli

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	JournalOptions
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Journal       store.JournalState   `json:"journal"`
	Batches       []store.BatchSummary `json:"batches"`
	Restored      int                  `json:"restored"`
	Skipped       int                  `json:"skipped"`
	Passports     int                  `json:"passports"`
	Channels      int                  `json:"channels"`
	Deterministic bool                 `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Replay the journal twice into fresh engines, verify that both produce
identical state, and report journal statistics per batch.

Blocks that no longer apply under the current capability file (for example
after an administrator was removed) are counted as skipped.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed
  2 - Command error (database not found, etc.)

Examples:
  hyperhistory replay --db ./history.db
  hyperhistory replay --db ./history.db --caps caps.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}
	addJournalFlags(cmd, &opts.JournalOptions)

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	caps, err := loadCapabilities(opts.Caps)
	if err != nil {
		return err
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	state, err := st.GetJournalState(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal state", err)
	}
	batches, err := st.ListBatches(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list batches", err)
	}

	first, n, err := restoreEngine(ctx, st, caps, logger)
	if err != nil {
		return err
	}
	second, _, err := restoreEngine(ctx, st, caps, logger)
	if err != nil {
		return err
	}

	snap := first.Snapshot()
	result := ReplayResult{
		Journal:       state,
		Batches:       batches,
		Restored:      n,
		Skipped:       state.Blocks - n,
		Passports:     len(snap.Passports),
		Channels:      len(snap.Channels),
		Deterministic: reflect.DeepEqual(snap, second.Snapshot()),
	}

	out := newFormatter(cmd, opts.RootOptions)
	if !result.Deterministic {
		if err := out.Failure(result, "E_NONDETERMINISTIC", "replays produced different state", func(w io.Writer) {
			printReplayText(w, result)
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay is not deterministic")
	}

	return out.Success(result, func(w io.Writer) { printReplayText(w, result) })
}

func printReplayText(w io.Writer, r ReplayResult) {
	if r.Journal.Blocks == 0 && r.Journal.Rejections == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return
	}

	fmt.Fprintf(w, "Journal: %d blocks, %d rejections, last seq %d\n", r.Journal.Blocks, r.Journal.Rejections, r.Journal.LastSeq)
	for _, b := range r.Batches {
		fmt.Fprintf(w, "  batch %s: %d blocks (seq %d-%d)\n", b.Batch, b.Blocks, b.FirstSeq, b.LastSeq)
	}
	fmt.Fprintf(w, "Restored %d, skipped %d: %d passports, %d channels\n", r.Restored, r.Skipped, r.Passports, r.Channels)

	if r.Deterministic {
		fmt.Fprintln(w, "✓ Replay is deterministic")
	} else {
		fmt.Fprintln(w, "✗ Replay is NOT deterministic")
	}
}
