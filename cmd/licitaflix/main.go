package main

import (
	"os"

	"github.com/dmbp/licitaflix/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
