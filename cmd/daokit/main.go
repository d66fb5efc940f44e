// Command daokit deploys and inspects DAOs on a local ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/daokit/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "daokit:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
