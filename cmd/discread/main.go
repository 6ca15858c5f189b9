package main

import (
	"os"

	"github.com/marmos91/discread/cmd/discread/commands"

	// Register prometheus metric constructors.
	_ "github.com/marmos91/discread/pkg/metrics/prometheus"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
