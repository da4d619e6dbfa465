package main

import (
	"os"

	"github.com/pptxagent/docsmcp/cmd/docsmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
