// Command idgen allocates IDs from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/unkn0wn-root/idgen/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "idgen:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
