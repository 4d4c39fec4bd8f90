package main

import (
	"os"

	"github.com/emergentdev/emergent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
