package main

import (
	"context"
	"fmt"
	"os"

	"github.com/systmms/smcreds/cmd/smcreds/commands"
	"github.com/systmms/smcreds/internal/config"
	smerrors "github.com/systmms/smcreds/internal/errors"
	"github.com/systmms/smcreds/internal/secretstores"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", smerrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.Config{}
	root := commands.NewRootCommand(cfg, secretstores.NewRegistry(), commands.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	return root.ExecuteContext(context.Background())
}
