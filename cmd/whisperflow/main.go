package main

import (
	"context"
	"os"

	"github.com/maxyzli/whisper-flow/internal/cli"
)

func main() {
	deps := &cli.Dependencies{}
	if err := cli.NewRootCmd(deps).ExecuteContext(context.Background()); err != nil {
		cli.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
