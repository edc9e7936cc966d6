package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/thereceipt/label-engine/internal/cli"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
