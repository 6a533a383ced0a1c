package main

import (
	"os"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/cmd"
)

func main() {
	root := cmd.NewRootCommand(cmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
