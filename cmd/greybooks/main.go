package main

import (
	"os"

	"github.com/greybooks/greybooks/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
