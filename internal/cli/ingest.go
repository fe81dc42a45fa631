package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/history"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	JournalOptions
	Workers int
	Horizon int
	Strict  bool

	// BatchGenerator allows overriding the batch token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	BatchGenerator engine.BatchTokenGenerator
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	Batch      string         `json:"batch"`
	Restored   int            `json:"restored"`
	Delivered  int            `json:"delivered"`
	Applied    int            `json:"applied"`
	Duplicate  int            `json:"duplicate"`
	Rejected   int            `json:"rejected"`
	Rejections map[string]int `json:"rejections,omitempty"` // by code
	Malformed  []int          `json:"malformed,omitempty"`  // input line numbers
	LastSeq    int64          `json:"last_seq"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	return newIngestCommand(&IngestOptions{RootOptions: rootOpts})
}

func newIngestCommand(opts *IngestOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [deliveries.jsonl|-]",
		Short: "Apply signed blocks and journal them",
		Long: `Read deliveries as JSON lines and run them through the history engine.

Each line holds a signed block and the subject it was received under:

  {"block": {...}, "server": "<base64 key>", "member": "<base64 key>"}

Lines that do not decode are logged and skipped; their line numbers are
listed in the result.

The journal is replayed first, so redeliveries of already journaled blocks
are reported as duplicates. Applied blocks and rejections are written to the
journal under a fresh batch token.

Exit codes:
  0 - Input processed
  1 - Blocks were rejected or lines were malformed, and --strict is set
  2 - Command error (bad input, database not found, etc.)

Examples:
  hyperhistory ingest --db ./history.db deliveries.jsonl
  cat deliveries.jsonl | hyperhistory ingest --db ./history.db --caps caps.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd, args)
		},
	}

	addJournalFlags(cmd, &opts.JournalOptions)
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultVerifyWorkers, "parallel signature verifications")
	cmd.Flags().IntVar(&opts.Horizon, "dedup-horizon", 0, "in-memory dedup window (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any block is rejected or any line is malformed")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command, args []string) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := newFormatter(cmd, opts.RootOptions)

	caps, err := loadCapabilities(opts.Caps)
	if err != nil {
		return err
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	input, closeInput, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer closeInput()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	result := IngestResult{Rejections: make(map[string]int)}
	handler := func(d engine.Delivery, o engine.Outcome) {
		result.Delivered++
		switch o.Status {
		case engine.StatusApplied:
			result.Applied++
		case engine.StatusDuplicate:
			result.Duplicate++
		case engine.StatusRejected:
			result.Rejected++
			result.Rejections[string(o.Reason.Code)]++
		}
		out.VerboseLog("%s %s %s", history.FormatHash(o.Hash), o.Kind, o.Status)
	}

	batchGen := opts.BatchGenerator
	if batchGen == nil {
		batchGen = engine.UUIDv7Generator{}
	}

	eng, restored, err := restoreEngine(ctx, st, caps, logger,
		engine.WithStore(st),
		engine.WithVerifyWorkers(opts.Workers),
		engine.WithDedupHorizon(opts.Horizon),
		engine.WithBatchTokens(batchGen),
		engine.WithOutcomeHandler(handler),
	)
	if err != nil {
		return err
	}
	result.Restored = restored
	result.Batch = eng.Batch()

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	src := NewJSONLSource(input, logger)
	consumeErr := eng.Consume(ctx, src)
	eng.Stop()
	runErr := <-done
	result.Malformed = src.Malformed

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", runErr)
	}
	if consumeErr != nil && !errors.Is(consumeErr, context.Canceled) && !errors.Is(consumeErr, engine.ErrStopped) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid input after %d deliveries", result.Delivered), consumeErr)
	}

	result.LastSeq = eng.Clock().Current()

	if err := out.Success(result, func(w io.Writer) { printIngestText(w, result) }); err != nil {
		return err
	}
	if opts.Strict && result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d block(s) rejected", result.Rejected))
	}
	if opts.Strict && len(result.Malformed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d malformed line(s)", len(result.Malformed)))
	}
	return nil
}

func printIngestText(w io.Writer, r IngestResult) {
	fmt.Fprintf(w, "Batch: %s\n", r.Batch)
	fmt.Fprintf(w, "Restored %d journaled blocks\n", r.Restored)
	fmt.Fprintf(w, "Delivered %d: %d applied, %d duplicate, %d rejected\n", r.Delivered, r.Applied, r.Duplicate, r.Rejected)

	codes := make([]string, 0, len(r.Rejections))
	for code := range r.Rejections {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %s: %d\n", code, r.Rejections[code])
	}
	if len(r.Malformed) > 0 {
		fmt.Fprintf(w, "Skipped %d malformed line(s): %v\n", len(r.Malformed), r.Malformed)
	}
}

// openInput opens the file named by args[0], or stdin for "-" or no args.
func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open input", err)
	}
	return f, func() { _ = f.Close() }, nil
}
