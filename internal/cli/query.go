package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/passport"
	"github.com/roach88/hyperhistory/internal/value"
)

// QueryOptions holds flags for the passport and messages commands.
type QueryOptions struct {
	*RootOptions
	JournalOptions
}

// NewPassportCommand creates the passport command.
func NewPassportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "passport <identity>",
		Short: "Show a passport rebuilt from the journal",
		Long: `Replay the journal and print the passport owned by a base64 identity.

Exit codes:
  0 - Passport printed
  1 - No passport for the identity
  2 - Command error

Example:
  hyperhistory passport --db ./history.db A1b2...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPassport(opts, cmd, args[0])
		},
	}
	addJournalFlags(cmd, &opts.JournalOptions)

	return cmd
}

func runPassport(opts *QueryOptions, cmd *cobra.Command, identity string) error {
	id, err := keys.ParsePublicKey(identity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid identity", err)
	}

	eng, err := openQueryEngine(cmd, opts)
	if err != nil {
		return err
	}

	p, ok := eng.PassportFor(id)
	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("no passport for %s", identity))
	}

	snap := p.Snapshot()
	return newFormatter(cmd, opts.RootOptions).Success(snap, func(w io.Writer) {
		printPassportText(w, p)
	})
}

func printPassportText(w io.Writer, p *passport.Passport) {
	fmt.Fprintf(w, "Passport %s\n", p.Owner())
	if p.Len() == 0 {
		fmt.Fprintln(w, "  (no fields)")
		return
	}
	for _, name := range p.Fields() {
		pv, _ := p.Get(name)
		rendered, err := value.MarshalCanonical(pv.Value)
		if err != nil {
			rendered = []byte("?")
		}
		line := fmt.Sprintf("  %s = %s", name, rendered)
		if signer, ok := p.Signer(name); ok && !signer.Equal(p.Owner()) {
			line += fmt.Sprintf(" (signed by %s)", signer)
		}
		fmt.Fprintln(w, line)
	}
}

// NewMessagesCommand creates the messages command.
func NewMessagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "messages <channel-id>",
		Short: "List a channel's messages rebuilt from the journal",
		Long: `Replay the journal and print a channel's messages in receipt order.

Example:
  hyperhistory messages --db ./history.db 7`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessages(opts, cmd, args[0])
		},
	}
	addJournalFlags(cmd, &opts.JournalOptions)

	return cmd
}

func runMessages(opts *QueryOptions, cmd *cobra.Command, channel string) error {
	channelID, err := strconv.ParseUint(channel, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid channel id", err)
	}

	eng, err := openQueryEngine(cmd, opts)
	if err != nil {
		return err
	}

	msgs := eng.MessagesFor(channelID)
	out := make([]engine.MessageSnapshot, len(msgs))
	for i, m := range msgs {
		out[i] = engine.MessageSnapshot{
			Seq:    m.Seq,
			Author: m.Author.String(),
			Text:   m.Text,
			Block:  history.FormatHash(m.BlockHash),
		}
	}

	return newFormatter(cmd, opts.RootOptions).Success(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintf(w, "No messages in channel %d.\n", channelID)
			return
		}
		for _, m := range out {
			fmt.Fprintf(w, "[%d] %s: %s\n", m.Seq, m.Author, m.Text)
		}
	})
}

// openQueryEngine restores a read-only engine: nothing is journaled.
func openQueryEngine(cmd *cobra.Command, opts *QueryOptions) (*engine.Engine, error) {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	caps, err := loadCapabilities(opts.Caps)
	if err != nil {
		return nil, err
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng, _, err := restoreEngine(ctx, st, caps, logger)
	return eng, err
}
