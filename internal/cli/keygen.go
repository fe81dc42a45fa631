package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hyperhistory/internal/keys"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Seed string
}

// KeyPair is the keygen output.
type KeyPair struct {
	Secret string `json:"secret"`
	Public string `json:"public"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an identity key pair",
		Long: `Generate a secp256k1 identity. Keys are printed as base64.

With --seed the key is derived from the seed, so the same seed always yields
the same identity. Seeded keys are for tests and fixtures only.

Examples:
  hyperhistory keygen
  hyperhistory keygen --seed alice --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "derive the key from this seed")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	var sk keys.SecretKey
	if opts.Seed != "" {
		sk = keys.SecretKeyFromSeed([]byte(opts.Seed))
	} else {
		var err error
		sk, err = keys.GenerateSecretKey()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to generate key", err)
		}
	}

	pair := KeyPair{Secret: sk.String(), Public: sk.PublicKey().String()}
	return newFormatter(cmd, opts.RootOptions).Success(pair, func(w io.Writer) {
		fmt.Fprintf(w, "secret: %s\n", pair.Secret)
		fmt.Fprintf(w, "public: %s\n", pair.Public)
	})
}
