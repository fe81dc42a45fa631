package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/capability"
	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/store"
)

// JournalOptions are the flags shared by every command that reads a journal.
type JournalOptions struct {
	Database string
	Caps     string // optional CUE capability file
}

func addJournalFlags(cmd *cobra.Command, opts *JournalOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Caps, "caps", "", "CUE capability file")
}

// loadCapabilities reads the capability file, or returns an empty registry
// when none is configured.
func loadCapabilities(path string) (*capability.Registry, error) {
	if path == "" {
		return capability.NewRegistry(), nil
	}
	reg, err := capability.LoadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load capabilities", err)
	}
	return reg, nil
}

// openStore opens the journal database.
func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// restoreEngine builds an engine over caps and replays the journal into it.
// extra options are applied after the defaults.
func restoreEngine(ctx context.Context, st *store.Store, caps *capability.Registry, logger *slog.Logger, extra ...engine.Option) (*engine.Engine, int, error) {
	opts := append([]engine.Option{engine.WithLogger(logger)}, extra...)
	eng := engine.New(caps, opts...)

	n, err := eng.Restore(ctx, st)
	if err != nil {
		return nil, 0, WrapExitError(ExitCommandError, "failed to restore journal", err)
	}
	return eng, n, nil
}
