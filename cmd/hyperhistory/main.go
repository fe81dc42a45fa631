// Command hyperhistory applies signed history blocks to passports and chat
// channels and keeps an SQLite journal of everything applied.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/hyperhistory/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
