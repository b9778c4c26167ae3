package main

import (
	"fmt"
	"os"

	"github.com/valentinerf/valentine-rf/cmd"
	"github.com/valentinerf/valentine-rf/internal/sdk"
)

func main() {
	root := cmd.NewCommand(sdk.Version, sdk.GitCommit)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
