package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fastid/fastid/internal/cli"
)

// Set with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {

	ctx := context.Background()

	root := cli.NewRootCommand(buildVersion, os.Stdin, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

}
