package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/passport"
	"github.com/roach88/hyperhistory/internal/value"
)

// SignOptions holds flags for the sign subcommands.
type SignOptions struct {
	*RootOptions
	Key string
}

// SignedValue is the "sign value" output.
type SignedValue struct {
	Value json.RawMessage `json:"value"`
	Sign  string          `json:"sign"`
}

// NewSignCommand creates the sign command group.
func NewSignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign history blocks and passport values",
	}
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "", "base64 secret key (required)")
	_ = cmd.MarkPersistentFlagRequired("key")

	cmd.AddCommand(&cobra.Command{
		Use:   "block [action.json|-]",
		Short: "Wrap an action in a signed block",
		Long: `Read an action in wire form ({"type": ..., "body": ...}) and print the
signed block. Reads stdin when no file is given.

Example:
  echo '{"type":"v1.members.messages.new","body":{"channel_id":7,"message":"hi"}}' |
    hyperhistory sign block --key $SECRET`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignBlock(opts, cmd, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "value [value.json|-]",
		Short: "Sign a passport field value",
		Long: `Read a JSON value and print it with a signature over its canonical form,
ready to be placed in a passport update action.

Example:
  echo '"Alice"' | hyperhistory sign value --key $SECRET`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignValue(opts, cmd, args)
		},
	})

	return cmd
}

func runSignBlock(opts *SignOptions, cmd *cobra.Command, args []string) error {
	sk, err := keys.ParseSecretKey(opts.Key)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --key", err)
	}

	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	action, err := history.ParseAction(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	b, err := history.SignBlock(sk, action)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to sign block", err)
	}

	out, err := json.Marshal(b)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode block", err)
	}

	return newFormatter(cmd, opts.RootOptions).Success(json.RawMessage(out), func(w io.Writer) {
		fmt.Fprintln(w, string(out))
	})
}

func runSignValue(opts *SignOptions, cmd *cobra.Command, args []string) error {
	sk, err := keys.ParseSecretKey(opts.Key)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --key", err)
	}

	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	v, err := value.Parse(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}

	pv, err := passport.NewValue(sk, v)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to sign value", err)
	}

	canonical, err := value.MarshalCanonical(pv.Value)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode value", err)
	}

	signed := SignedValue{Value: canonical, Sign: pv.Sign.String()}
	return newFormatter(cmd, opts.RootOptions).Success(signed, func(w io.Writer) {
		fmt.Fprintf(w, "value: %s\n", canonical)
		fmt.Fprintf(w, "sign:  %s\n", signed.Sign)
	})
}

// readInput reads the file named by args[0], or stdin for "-" or no args.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read input", err)
	}
	return data, nil
}
